package clinicapi

// Workplace is a clinic or hospital location a doctor holds appointments
// at. Working-hours configuration lives backend-side; the client only sees
// the slots derived from it.
type Workplace struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
}

// Doctor is a search result with zero or more embedded workplaces.
type Doctor struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Speciality string      `json:"speciality,omitempty"`
	Workplaces []Workplace `json:"workplaces"`
}

// SlotsResponse is the normalized slot-fetch result. SlotsByDate maps
// YYYY-MM-DD to raw time strings exactly as the backend produced them;
// normalization into records happens in the slots package.
type SlotsResponse struct {
	SlotsByDate   map[string][]string `json:"slots_by_date"`
	DoctorName    string              `json:"doctor_name"`
	WorkplaceName string              `json:"workplace_name"`
}

// SlotsRequest identifies whose slots to fetch. An empty Date asks the
// backend for its default window (the next 3 days).
type SlotsRequest struct {
	DoctorID    string `json:"doctor_id"`
	WorkplaceID string `json:"workplace_id"`
	Date        string `json:"date,omitempty"`
}

// Appointment is an existing booking as the backend reports it.
type Appointment struct {
	ID              string `json:"id"`
	DoctorID        string `json:"doctor_id"`
	DoctorName      string `json:"doctor_name"`
	WorkplaceID     string `json:"workplace_id"`
	WorkplaceName   string `json:"workplace_name"`
	AppointmentDate string `json:"appointment_date"` // YYYY-MM-DD
	Slot            string `json:"slot"`
	Status          string `json:"status"`
	QueuePosition   int    `json:"queue_position,omitempty"`
}

// BookingRequest creates a new appointment.
type BookingRequest struct {
	DoctorID      string `json:"doctorId"`
	WorkplaceID   string `json:"workplaceId"`
	RequestedTime string `json:"requestedTime"` // ISO date-time
	Slot          string `json:"slot"`
	Notes         string `json:"notes,omitempty"`
}

// BookingResponse confirms a new appointment.
type BookingResponse struct {
	AppointmentID string `json:"appointmentId"`
	WorkplaceName string `json:"workplaceName"`
	Slot          string `json:"slot"`
	QueuePosition int    `json:"queuePosition,omitempty"`
}

// RescheduleRequest moves an existing appointment to a new date/slot.
type RescheduleRequest struct {
	Reason             string `json:"reason"`
	NewAppointmentDate string `json:"newAppointmentDate"` // YYYY-MM-DD
	NewTimeSlot        string `json:"newTimeSlot"`
}

// RescheduleResponse reports the outcome of a reschedule.
type RescheduleResponse struct {
	Message              string `json:"message"`
	CalendarEventUpdated bool   `json:"calendarEventUpdated,omitempty"`
}

// BulkRescheduleRequest shifts every booking at a workspace.
type BulkRescheduleRequest struct {
	WorkspaceID   string `json:"workspaceId"`
	ExtendHours   int    `json:"extendHours"`
	ExtendMinutes int    `json:"extendMinutes"`
	NewDate       string `json:"newDate"` // "" when only a time shift was requested
	Reason        string `json:"reason"`
}

// CancelDayRequest cancels every booking at a workspace on one date.
type CancelDayRequest struct {
	Date   string `json:"date"` // YYYY-MM-DD
	Reason string `json:"reason"`
}

// CancelDayResponse reports how many bookings a cancel-day touched.
type CancelDayResponse struct {
	Message        string `json:"message"`
	CancelledCount int    `json:"cancelledCount,omitempty"`
}

// CancelRequest cancels a single appointment.
type CancelRequest struct {
	Reason       string `json:"reason"`
	CustomReason string `json:"customReason,omitempty"`
}

// MessageResponse is the generic {message} envelope several write
// endpoints return.
type MessageResponse struct {
	Message string `json:"message"`
}

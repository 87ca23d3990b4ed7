package domain

const (
	RequesterIdCtxKey = "hv-requesterId"
)

// EventKind names a registry event.
type EventKind string

const (
	EventPatientRegistered  EventKind = "PatientRegistered"
	EventDataUpdated        EventKind = "DataUpdated"
	EventProviderAuthorized EventKind = "ProviderAuthorized"
	EventProviderRevoked    EventKind = "ProviderRevoked"
	EventKeyRequested       EventKind = "KeyRequested"
)

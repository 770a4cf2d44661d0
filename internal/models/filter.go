package models

// RoomFilter narrows a room listing. Empty Statuses match every status.
type RoomFilter struct {
	Statuses   []RoomStatus
	ProjectIDs []string
	// AllProjects disables the project scope; an empty ProjectIDs with
	// AllProjects false matches nothing.
	AllProjects bool
}

// Matches reports whether room passes the filter
func (f RoomFilter) Matches(room *MeetingRoom) bool {
	if len(f.Statuses) > 0 {
		ok := false
		for _, s := range f.Statuses {
			if room.Status == s {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if f.AllProjects {
		return true
	}
	for _, id := range f.ProjectIDs {
		if room.ProjectID == id {
			return true
		}
	}
	return false
}

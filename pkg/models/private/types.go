package private

// Actor is the resolved identity behind a request, as reported by the
// identity collaborator.
type Actor struct {
	ID            string
	Moderates     []string
	PlatformAdmin bool
}

// CanModerate reports whether the actor holds moderator authority over
// the community. Platform admins are authorized everywhere.
func (a Actor) CanModerate(communityID string) bool {
	if a.PlatformAdmin {
		return true
	}
	for _, c := range a.Moderates {
		if c == communityID {
			return true
		}
	}
	return false
}

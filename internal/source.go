package internal

// Platform keys the adapter registry. Every Source names one.
const (
	PlatformGoogle = "google"
	PlatformCalDAV = "caldav"
)

type Account struct {
	Platform string
	Name     string
	Auth     string
}

func (a Account) ID() string {
	return a.Platform + "/" + a.Name
}

// Source is one configured calendar feed. ProviderID is whatever the
// platform uses to address the calendar: a Google calendar ID, a CalDAV
// collection path.
type Source struct {
	ID         string
	Name       string
	Kind       Kind
	Platform   string
	ProviderID string
	Account    Account
}

func (s Source) String() string {
	return s.ID
}

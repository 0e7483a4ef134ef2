package seeds

type State int

const (
	// StateUnset means no seed is stored.
	StateUnset State = iota
	// StateSet means a seed is stored and can be decrypted.
	StateSet
	// StateError means a seed is stored but could not be read or decrypted.
	StateError
)

func (s State) String() string {
	switch s {
	case StateUnset:
		return "unset"
	case StateSet:
		return "set"
	case StateError:
		return "error"
	}
	return "unknown"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Update is one published value of the current seed. Seed is empty unless
// State is StateSet.
type Update struct {
	State State
	Seed  string
}

func (u Update) HasSeed() bool {
	return u.State == StateSet
}

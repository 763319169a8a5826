package diskstat

// Fake is a test double Probe returning a fixed or per-path Usage.
// Tests construct one directly rather than downcasting a live probe,
// per this codebase's port-testing convention.
type Fake struct {
	// ByMount overrides Stat's result for a specific path.
	ByMount map[string]Usage
	// Default is returned for any path not present in ByMount.
	Default Usage
	// ErrByMount fails Stat for a specific path.
	ErrByMount map[string]error
}

// NewFake builds a Fake with the given default usage.
func NewFake(total, avail uint64) *Fake {
	return &Fake{Default: Usage{TotalBytes: total, AvailBytes: avail}}
}

func (f *Fake) Stat(path string) (Usage, error) {
	if f.ErrByMount != nil {
		if err, ok := f.ErrByMount[path]; ok {
			return Usage{}, err
		}
	}
	if f.ByMount != nil {
		if u, ok := f.ByMount[path]; ok {
			u.MountedOn = path
			return u, nil
		}
	}
	u := f.Default
	u.MountedOn = path
	return u, nil
}

// SetMount fixes the Usage returned for a specific path.
func (f *Fake) SetMount(path string, total, avail uint64) {
	if f.ByMount == nil {
		f.ByMount = make(map[string]Usage)
	}
	f.ByMount[path] = Usage{TotalBytes: total, AvailBytes: avail, MountedOn: path}
}

// SetErr fails Stat for a specific path.
func (f *Fake) SetErr(path string, err error) {
	if f.ErrByMount == nil {
		f.ErrByMount = make(map[string]error)
	}
	f.ErrByMount[path] = err
}

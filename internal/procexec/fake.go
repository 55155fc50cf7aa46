package procexec

import "context"

// Call records one invocation seen by a Fake.
type Call struct {
	Dir  string
	Argv []string
}

// Fake is a scripted Runner for tests. Results are consumed in call order;
// once exhausted, the zero Result is returned.
type Fake struct {
	Results []Result
	Errs    []error
	Calls   []Call
}

// Run implements Runner.
func (f *Fake) Run(_ context.Context, dir string, argv ...string) (Result, error) {
	idx := len(f.Calls)
	f.Calls = append(f.Calls, Call{Dir: dir, Argv: append([]string(nil), argv...)})

	var res Result
	if idx < len(f.Results) {
		res = f.Results[idx]
	}
	var err error
	if idx < len(f.Errs) {
		err = f.Errs[idx]
	}
	return res, err
}

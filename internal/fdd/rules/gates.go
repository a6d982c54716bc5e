package rules

// Mode gates shared by the fault conditions. Saturation limits are exact
// comparators and are not interchangeable with each other.
const (
	heatingFull   = 0.99
	economizerMax = 0.9
	coolingIdle   = 0.1
)

func fanRunning(vfd float64) bool { return vfd > 0 }

func heatingActive(sig float64) bool { return sig > 0 }

func coolingActive(sig float64) bool { return sig > 0 }

func coolingOff(sig float64) bool { return sig < coolingIdle }

func economizing(econ, minOA float64) bool { return econ > minOA }

func economizerFull(econ float64) bool { return econ > economizerMax }

func atMinOA(econ, minOA float64) bool { return econ == minOA }

func newBase(t Thresholds, id, name string) (base, error) {
	w, err := t.Window()
	if err != nil {
		return base{}, err
	}
	return base{id: id, name: name, window: w}, nil
}

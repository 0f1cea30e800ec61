package drive

const (
	DefaultSlowFactor = 0.5
	DefaultDeadband   = 0.05
	DefaultTurboSteer = 0.5
)

// Sign conventions for the throttle axis. Most gamepads report the stick
// pushed away from the operator as a negative value.
const (
	ForwardIsNegative = -1.0
	ForwardIsPositive = 1.0
)

type Command struct {
	Left  float64
	Right float64
}

// Scale multiplies both wheels by the power ceiling and clamps the result.
func (c Command) Scale(maxPower float64) Command {
	return Command{
		Left:  Clamp(c.Left * maxPower),
		Right: Clamp(c.Right * maxPower),
	}
}

func (c Command) IsZero() bool {
	return c.Left == 0 && c.Right == 0
}

type Mapper struct {
	SlowFactor   float64
	Deadband     float64
	TurboSteer   float64 // steer multiplier applied when turbo is not held
	ThrottleSign float64
}

func DefaultMapper() Mapper {
	return Mapper{
		SlowFactor:   DefaultSlowFactor,
		Deadband:     DefaultDeadband,
		TurboSteer:   DefaultTurboSteer,
		ThrottleSign: ForwardIsNegative,
	}
}

// Compute turns a stick reading into wheel speeds. Steering never adds speed
// to a wheel; it scales down (and past full deflection, reverses) the wheel on
// the inside of the turn.
func (m Mapper) Compute(throttle, steer float64, turbo, slow bool) Command {
	throttle = Clamp(throttle)
	steer = Clamp(steer)

	if !turbo {
		steer *= m.TurboSteer
	}

	left := m.ThrottleSign * throttle
	right := m.ThrottleSign * throttle

	if steer < -m.Deadband {
		right *= 1.0 + 2.0*steer
	} else if steer > m.Deadband {
		left *= 1.0 - 2.0*steer
	}

	if slow {
		left *= m.SlowFactor
		right *= m.SlowFactor
	}

	return Command{Left: Clamp(left), Right: Clamp(right)}
}

func Clamp(v float64) float64 {
	return min(max(v, -1), 1)
}

// Quantize converts a fractional speed to the actuator's symmetric integer
// range, truncating toward zero.
func Quantize(speed float64, limit int) int {
	return int(Clamp(speed) * float64(limit))
}

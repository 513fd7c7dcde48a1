package core

// Buttons reads the two momentary throttle inputs. The pins idle high on
// their pull-ups and read low while pressed.
type Buttons struct {
	gpio       GPIODriver
	accelerate GPIOPin
	decelerate GPIOPin
}

// NewButtons configures both pins as pulled-up inputs
func NewButtons(gpio GPIODriver, accelerate, decelerate GPIOPin) (*Buttons, error) {
	if err := gpio.ConfigureInputPullUp(accelerate); err != nil {
		return nil, err
	}
	if err := gpio.ConfigureInputPullUp(decelerate); err != nil {
		return nil, err
	}
	return &Buttons{gpio: gpio, accelerate: accelerate, decelerate: decelerate}, nil
}

// Read returns the level state of both buttons, true while pressed
func (b *Buttons) Read() (accelerate, decelerate bool) {
	return !b.gpio.ReadPin(b.accelerate), !b.gpio.ReadPin(b.decelerate)
}

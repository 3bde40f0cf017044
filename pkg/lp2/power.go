package lp2

import "github.com/go-dcc/dccstack"

// SetMode drives the engine through the power-mode transition sequence of
// spec §4.4 and invokes done with the terminal error (nil on success). If
// the cached mode already equals target, it short-circuits with no device
// I/O (spec §8: "a second powerOn(Service) with mode already Service
// performs no device I/O").
func (e *Engine) SetMode(target Mode, done func(error)) {
	if e.mode == target {
		done(nil)
		return
	}
	e.sendReset(func(err error) {
		if err != nil {
			done(err)
			return
		}
		e.sendSetPower(target, func(err error) {
			if err != nil {
				done(err)
				return
			}
			switch target {
			case ModeEnabled:
				e.sendSetSomeMagic1(0x01, func(err error) {
					if err != nil {
						done(err)
						return
					}
					e.mode = target
					done(nil)
				})
			case ModeService:
				e.sendSetSomeMagic1(0x02, func(err error) {
					if err != nil {
						done(err)
						return
					}
					e.sendSetAcknowledgeMode(acknowledgeModeDefault, func(err error) {
						if err != nil {
							done(err)
							return
						}
						e.mode = target
						done(nil)
					})
				})
			default:
				e.mode = target
				done(nil)
			}
		})
	})
}

// checkStatus converts a Response's status byte into nil or
// dccstack.RequestFailed, per the propagation policy of spec §7.
func checkStatus(msg Message, transportErr error) error {
	if transportErr != nil {
		return transportErr
	}
	status, ok := msg.ResponseStatus()
	if !ok || status != StatusSuccess {
		return dccstack.RequestFailed
	}
	return nil
}

func (e *Engine) sendReset(done func(error)) {
	seq := e.nextSequence()
	if err := e.send(Reset(seq), func(msg Message, err error) { done(checkStatus(msg, err)) }); err != nil {
		done(err)
	}
}

func (e *Engine) sendSetPower(mode Mode, done func(error)) {
	seq := e.nextSequence()
	if err := e.send(SetPower(seq, mode), func(msg Message, err error) { done(checkStatus(msg, err)) }); err != nil {
		done(err)
	}
}

func (e *Engine) sendSetSomeMagic1(value byte, done func(error)) {
	seq := e.nextSequence()
	if err := e.send(SetSomeMagic1(seq, value), func(msg Message, err error) { done(checkStatus(msg, err)) }); err != nil {
		done(err)
	}
}

func (e *Engine) sendSetAcknowledgeMode(mode byte, done func(error)) {
	seq := e.nextSequence()
	if err := e.send(SetAcknowledgeMode(seq, mode), func(msg Message, err error) { done(checkStatus(msg, err)) }); err != nil {
		done(err)
	}
}

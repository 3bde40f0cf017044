package lp2

import (
	"github.com/go-dcc/dccstack"
	"github.com/go-dcc/dccstack/pkg/cvaddr"
	"github.com/go-dcc/dccstack/pkg/dcc"
)

// dccRepeats is the "DCC reset(5)" repetition the reference sends before
// each service-mode bit/byte verification (spec §4.4).
const dccRepeats = 5

// sendDccRepeated writes n copies of req's bytes as LP2 DCC-request
// messages, waiting for each one's response before sending the next (the
// strictly-sequential pipeline discipline of spec §5), then invokes done.
func (e *Engine) sendDccRepeated(req dcc.Request, n int, done func(error)) {
	if n == 0 {
		done(nil)
		return
	}
	seq := e.nextSequence()
	if err := e.send(DccRequest(seq, req), func(msg Message, err error) {
		if err := checkStatus(msg, err); err != nil {
			done(err)
			return
		}
		e.sendDccRepeated(req, n-1, done)
	}); err != nil {
		done(err)
	}
}

// sendDccAcknowledge writes one DCC-request message and reports the
// decoder's acknowledge byte from the response payload (offset 1, after
// the status byte).
func (e *Engine) sendDccAcknowledge(req dcc.Request, done func(Acknowledge, error)) {
	seq := e.nextSequence()
	if err := e.send(DccRequest(seq, req), func(msg Message, err error) {
		if err := checkStatus(msg, err); err != nil {
			done(AcknowledgeNone, err)
			return
		}
		if len(msg.Payload) < 2 {
			done(AcknowledgeNone, dccstack.RequestFailed)
			return
		}
		done(Acknowledge(msg.Payload[1]), nil)
	}); err != nil {
		done(AcknowledgeNone, err)
	}
}

// ReadVariable performs the bit-wise service-mode CV read of spec §4.4: for
// each of 8 bit positions, reset(5) then verify-bit(cv, 0, pos); a Negative
// acknowledge means the stored bit is 1. A trailing verify-byte confirms
// the accumulated value. Every individual bit request runs to completion
// even if one fails, so the pending table stays clean; only then is
// Failure reported (spec §4.4: "do not abort early").
func (e *Engine) ReadVariable(cv uint16, done func(dccstack.ErrorCode, byte)) {
	e.SetMode(ModeService, func(err error) {
		if err != nil {
			done(dccstack.RequestFailed, 0)
			return
		}
		e.readBits(cv, 0, 0, false, done)
	})
}

func (e *Engine) readBits(cv uint16, pos uint8, acc byte, anyFailed bool, done func(dccstack.ErrorCode, byte)) {
	if pos > 7 {
		e.verifyByteConfirm(cv, acc, anyFailed, done)
		return
	}
	resetReq := dcc.Reset()
	e.sendDccRepeated(resetReq, dccRepeats, func(err error) {
		if err != nil {
			e.readBits(cv, pos+1, acc, true, done)
			return
		}
		verifyReq, verr := dcc.VerifyBit(cv, false, pos)
		if verr != nil {
			done(dccstack.InvalidRequest, 0)
			return
		}
		e.sendDccAcknowledge(verifyReq, func(ack Acknowledge, err error) {
			failed := anyFailed || err != nil || ack == AcknowledgeNone
			if err == nil && ack == AcknowledgeNegative {
				acc |= 1 << pos
			}
			e.readBits(cv, pos+1, acc, failed, done)
		})
	})
}

func (e *Engine) verifyByteConfirm(cv uint16, acc byte, anyFailed bool, done func(dccstack.ErrorCode, byte)) {
	if anyFailed {
		done(dccstack.RequestFailed, 0)
		return
	}
	verifyReq, err := dcc.VerifyByte(cv, acc)
	if err != nil {
		done(dccstack.InvalidRequest, 0)
		return
	}
	e.sendDccAcknowledge(verifyReq, func(ack Acknowledge, err error) {
		if err != nil || ack != AcknowledgePositive {
			done(dccstack.RequestFailed, 0)
			return
		}
		done(dccstack.NoError, acc)
	})
}

// WriteVariable performs the service-mode CV write + verify of spec §4.4.
// Once the pending table is otherwise empty, it also sends SetPower
// (ModeDisabled) to physically power off the programming track, only
// updating the cached mode once that completes successfully.
func (e *Engine) WriteVariable(cv uint16, value byte, done func(dccstack.ErrorCode)) {
	e.SetMode(ModeService, func(err error) {
		if err != nil {
			done(dccstack.RequestFailed)
			return
		}
		e.sendDccRepeated(dcc.Reset(), dccRepeats, func(err error) {
			if err != nil {
				done(dccstack.RequestFailed)
				return
			}
			writeReq, werr := dcc.WriteByte(cv, value)
			if werr != nil {
				done(dccstack.InvalidRequest)
				return
			}
			e.sendDccAcknowledge(writeReq, func(ack Acknowledge, err error) {
				if err != nil || ack != AcknowledgePositive {
					done(dccstack.ValueRejected)
					return
				}
				verifyReq, verr := dcc.VerifyByte(cv, value)
				if verr != nil {
					done(dccstack.InvalidRequest)
					return
				}
				e.sendDccAcknowledge(verifyReq, func(ack Acknowledge, err error) {
					if err != nil || ack != AcknowledgePositive {
						done(dccstack.ValueRejected)
						return
					}
					if e.pendingCount() != 0 {
						done(dccstack.NoError)
						return
					}
					// spec §4.4 step 4: power off the device, not just the
					// cached Mode -- SetMode short-circuits on e.mode alone,
					// so a bare flip without the matching SetPower(Disabled)
					// would leave the device in Service mode.
					e.sendSetPower(ModeDisabled, func(perr error) {
						if perr == nil {
							e.mode = ModeDisabled
						}
						done(dccstack.NoError)
					})
				})
			})
		})
	})
}

// ReadExtendedVariable dispatches an ExtendedVariableIndex per spec §4.7:
// for a plain base (PageNone), it reads directly; otherwise it first
// programs CV31/CV32 or the SUSI page register, then reads the base CV,
// without interleaving any other CV operation (guaranteed here by the
// engine's own strictly-sequential continuation chain, per §5).
func (e *Engine) ReadExtendedVariable(ex cvaddr.ExtendedVariableIndex, done func(dccstack.ErrorCode, byte)) {
	base := ex.VariableIndex()
	e.programPage(ex, func(err dccstack.ErrorCode) {
		if err != dccstack.NoError {
			done(err, 0)
			return
		}
		e.ReadVariable(base, done)
	})
}

// WriteExtendedVariable is the write-side counterpart of
// ReadExtendedVariable.
func (e *Engine) WriteExtendedVariable(ex cvaddr.ExtendedVariableIndex, value byte, done func(dccstack.ErrorCode)) {
	base := ex.VariableIndex()
	e.programPage(ex, func(err dccstack.ErrorCode) {
		if err != dccstack.NoError {
			done(err)
			return
		}
		e.WriteVariable(base, value, done)
	})
}

// cv31 and cv32 are the NMRA-reserved page registers used by extended CVs.
const (
	cv31 uint16 = 31
	cv32 uint16 = 32
	// cvSusiPage is the SUSI page-select register, CV897 (spec §4.2).
	cvSusiPage uint16 = 897
)

func (e *Engine) programPage(ex cvaddr.ExtendedVariableIndex, done func(dccstack.ErrorCode)) {
	if cv31hi, cv32lo, ok := ex.ExtendedPage(); ok {
		e.WriteVariable(cv31, cv31hi, func(status dccstack.ErrorCode) {
			if status != dccstack.NoError {
				done(status)
				return
			}
			e.WriteVariable(cv32, cv32lo, done)
		})
		return
	}
	if susiIdx, ok := ex.SUSIPage(); ok {
		e.WriteVariable(cvSusiPage, susiIdx, done)
		return
	}
	done(dccstack.NoError)
}

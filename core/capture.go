package core

import "sunpwm/mmio"

// SetCaptureEnable arms capture on ch. The channel's capture enable bit is
// set if either edge is requested; the rising and falling triggers are armed
// independently.
//
// It does not check whether ch is generating PWM; ApplyCaptureConfig does.
func (c *Controller) SetCaptureEnable(ch Channel, rising, falling bool) error {
	if err := ch.Validate(); err != nil {
		return err
	}
	ccr := channelReg(ch, regCaptureControl)
	c.setBit(regCaptureEnable, uint(ch), rising || falling)
	c.setBit(ccr, captureRiseTrigBit, rising)
	c.setBit(ccr, captureFallTrigBit, falling)
	return nil
}

// SetCaptureInterruptEnable enables the per-edge capture interrupts of ch.
func (c *Controller) SetCaptureInterruptEnable(ch Channel, rising, falling bool) error {
	if err := ch.Validate(); err != nil {
		return err
	}
	c.setBit(regCaptureIRQEnable, captureRiseIRQBit(ch), rising)
	c.setBit(regCaptureIRQEnable, captureFallIRQBit(ch), falling)
	return nil
}

// ClearCaptureInterrupt clears the requested edges' interrupt status bits and
// lock flags of ch.
func (c *Controller) ClearCaptureInterrupt(ch Channel, rising, falling bool) error {
	if err := ch.Validate(); err != nil {
		return err
	}
	ccr := channelReg(ch, regCaptureControl)
	if rising {
		c.setBit(regCaptureIRQStatus, captureRiseIRQBit(ch), false)
		c.setBit(ccr, captureRiseLockFlag, false)
	}
	if falling {
		c.setBit(regCaptureIRQStatus, captureFallIRQBit(ch), false)
		c.setBit(ccr, captureFallLockFlag, false)
	}
	return nil
}

// ReadCaptureInterruptStatus returns ch's pending rising and falling capture
// interrupts.
func (c *Controller) ReadCaptureInterruptStatus(ch Channel) (rising, falling bool, err error) {
	if err := ch.Validate(); err != nil {
		return false, false, err
	}
	reg := c.load(regCaptureIRQStatus)
	return mmio.IsSet(reg, captureRiseIRQBit(ch)), mmio.IsSet(reg, captureFallIRQBit(ch)), nil
}

// ReadRiseLockCount returns the count latched at ch's last rising edge.
func (c *Controller) ReadRiseLockCount(ch Channel) (uint16, error) {
	if err := ch.Validate(); err != nil {
		return 0, err
	}
	return uint16(c.load(channelReg(ch, regRiseLock)) & counterMask), nil
}

// ReadFallLockCount returns the count latched at ch's last falling edge.
func (c *Controller) ReadFallLockCount(ch Channel) (uint16, error) {
	if err := ch.Validate(); err != nil {
		return 0, err
	}
	return uint16(c.load(channelReg(ch, regFallLock)) & counterMask), nil
}

// ReadRiseLockFlag reports whether a rising edge has been latched since the
// flag was last cleared. It works with interrupts disabled.
func (c *Controller) ReadRiseLockFlag(ch Channel) (bool, error) {
	if err := ch.Validate(); err != nil {
		return false, err
	}
	return mmio.IsSet(c.load(channelReg(ch, regCaptureControl)), captureRiseLockFlag), nil
}

// ReadFallLockFlag reports whether a falling edge has been latched since the
// flag was last cleared. It works with interrupts disabled.
func (c *Controller) ReadFallLockFlag(ch Channel) (bool, error) {
	if err := ch.Validate(); err != nil {
		return false, err
	}
	return mmio.IsSet(c.load(channelReg(ch, regCaptureControl)), captureFallLockFlag), nil
}

// SetCaptureInvert inverts the capture input of ch.
func (c *Controller) SetCaptureInvert(ch Channel, invert bool) error {
	if err := ch.Validate(); err != nil {
		return err
	}
	c.setBit(channelReg(ch, regCaptureControl), captureInvertBit, invert)
	return nil
}

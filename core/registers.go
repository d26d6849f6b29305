package core

// sun20i (T113) PWM register block, offsets from the block base.
// See the T113-S3 user manual, PWM chapter.
const (
	regIRQEnable        = 0x0000 // PIER
	regIRQStatus        = 0x0004 // PISR
	regCaptureIRQEnable = 0x0010 // CIER
	regCaptureIRQStatus = 0x0014 // CISR
	regClockConfig      = 0x0020 // PCCR01, PCCR23, PCCR45, PCCR67 at 4 byte stride
	regClockGating      = 0x0040 // PCGR
	regEnable           = 0x0080 // PER
	regCaptureEnable    = 0x00C0 // CER

	// Per-channel block
	regChannelBase    = 0x0100
	regChannelStride  = 0x20
	regControl        = 0x00 // PCR
	regPeriod         = 0x04 // PPR
	regCount          = 0x08 // PCNTR
	regPulseCount     = 0x0C // PPCNTR
	regCaptureControl = 0x10 // CCR
	regRiseLock       = 0x14 // CRLR
	regFallLock       = 0x18 // CFLR

	// WindowSize is the span of the register block.
	WindowSize = regChannelBase + NumChannels*regChannelStride
)

// Clock configuration register (PCCRxy)
const (
	clockSourceBit  = 7
	clockDividerMsk = 0x0F
)

// Clock gating register (PCGR)
const clockBypassShift = 16

// Control register (PCR)
const (
	controlActiveStateBit = 8
	controlPrescalerMask  = 0xFF
)

// Period register (PPR)
const (
	periodEntireShift = 16
	periodHalfMask    = 0xFFFF
)

// Capture control register (CCR)
const (
	captureInvertBit    = 0
	captureFallTrigBit  = 1
	captureRiseTrigBit  = 2
	captureFallLockFlag = 3
	captureRiseLockFlag = 4
)

// Lock and pulse counter registers carry 16 significant bits.
const counterMask = 0xFFFF

func channelReg(ch Channel, reg uintptr) uintptr {
	return regChannelBase + uintptr(ch)*regChannelStride + reg
}

func clockConfigReg(ch Channel) uintptr {
	return regClockConfig + 4*uintptr(ch/2)
}

// Capture IRQ enable/status bit positions.
func captureRiseIRQBit(ch Channel) uint { return 2 * uint(ch) }
func captureFallIRQBit(ch Channel) uint { return 2*uint(ch) + 1 }

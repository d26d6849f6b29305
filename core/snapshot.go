package core

import (
	"fmt"
	"io"
)

// Snapshot is a side-effect free copy of the register block.
type Snapshot struct {
	IRQEnable        uint32
	IRQStatus        uint32
	CaptureIRQEnable uint32
	CaptureIRQStatus uint32
	ClockConfig      [NumChannels / 2]uint32
	ClockGating      uint32
	Enable           uint32
	CaptureEnable    uint32
	Channels         [NumChannels]ChannelRegisters
}

// ChannelRegisters is the per-channel register block.
type ChannelRegisters struct {
	Control        uint32
	Period         uint32
	Count          uint32
	PulseCount     uint32
	CaptureControl uint32
	RiseLock       uint32
	FallLock       uint32
}

// Snapshot reads every register of the block.
func (c *Controller) Snapshot() Snapshot {
	s := Snapshot{
		IRQEnable:        c.load(regIRQEnable),
		IRQStatus:        c.load(regIRQStatus),
		CaptureIRQEnable: c.load(regCaptureIRQEnable),
		CaptureIRQStatus: c.load(regCaptureIRQStatus),
		ClockGating:      c.load(regClockGating),
		Enable:           c.load(regEnable),
		CaptureEnable:    c.load(regCaptureEnable),
	}
	for i := range s.ClockConfig {
		s.ClockConfig[i] = c.load(regClockConfig + 4*uintptr(i))
	}
	for i := range s.Channels {
		ch := Channel(i)
		s.Channels[i] = ChannelRegisters{
			Control:        c.load(channelReg(ch, regControl)),
			Period:         c.load(channelReg(ch, regPeriod)),
			Count:          c.load(channelReg(ch, regCount)),
			PulseCount:     c.load(channelReg(ch, regPulseCount)),
			CaptureControl: c.load(channelReg(ch, regCaptureControl)),
			RiseLock:       c.load(channelReg(ch, regRiseLock)),
			FallLock:       c.load(channelReg(ch, regFallLock)),
		}
	}
	return s
}

type regRow struct {
	off   uintptr
	name  string
	value uint32
}

// Format writes the snapshot as a register table.
func (s Snapshot) Format(w io.Writer) error {
	rows := []regRow{
		{regIRQEnable, "PIER   IRQ enable", s.IRQEnable},
		{regIRQStatus, "PISR   IRQ status", s.IRQStatus},
		{regCaptureIRQEnable, "CIER   capture IRQ enable", s.CaptureIRQEnable},
		{regCaptureIRQStatus, "CISR   capture IRQ status", s.CaptureIRQStatus},
	}
	for i, v := range s.ClockConfig {
		rows = append(rows, regRow{regClockConfig + 4*uintptr(i), fmt.Sprintf("PCCR%d%d clock config", 2*i, 2*i+1), v})
	}
	rows = append(rows,
		regRow{regClockGating, "PCGR   clock gating", s.ClockGating},
		regRow{regEnable, "PER    enable", s.Enable},
		regRow{regCaptureEnable, "CER    capture enable", s.CaptureEnable},
	)
	for _, r := range rows {
		if _, err := fmt.Fprintf(w, " %04X: %-28s %08x\n", r.off, r.name, r.value); err != nil {
			return err
		}
	}

	if _, err := fmt.Fprintln(w, "\n ch  PCR      PPR      PCNTR    PPCNTR   CCR      CRLR     CFLR"); err != nil {
		return err
	}
	for i, r := range s.Channels {
		if _, err := fmt.Fprintf(w, " %d   %08x %08x %08x %08x %08x %08x %08x\n",
			i, r.Control, r.Period, r.Count, r.PulseCount, r.CaptureControl, r.RiseLock, r.FallLock); err != nil {
			return err
		}
	}
	return nil
}

package progress

import (
	"fmt"
	"io"
	"os"

	"github.com/pterm/pterm"
)

// Bar renders one pterm progress bar per upload. It feeds the bar deltas,
// so the displayed count never moves backwards or double counts.
type Bar struct {
	bar  *pterm.ProgressbarPrinter
	last int64
}

func NewBar() *Bar {
	return &Bar{}
}

func (b *Bar) Begin(name string, total int64) {
	b.last = 0
	bar, err := pterm.DefaultProgressbar.
		WithTotal(int(total)).
		WithTitle("Transferring " + name).
		WithShowCount(false).
		Start()
	if err != nil {
		// No usable terminal; uploads still proceed silently.
		b.bar = nil
		return
	}
	b.bar = bar
}

func (b *Bar) Update(transferred, total int64) {
	if b.bar == nil {
		return
	}
	delta := transferred - b.last
	if delta <= 0 {
		return
	}
	b.bar.Add(int(delta))
	b.last = transferred
}

func (b *Bar) End(name string, err error) {
	if b.bar != nil {
		_, _ = b.bar.Stop()
		b.bar = nil
	}
	if err != nil {
		pterm.Error.Printfln("%s did not transfer", name)
		return
	}
	pterm.Success.Printfln("%s transferred", name)
}

// Verbose prints a line per progress callback, the noisy mode for watching
// a transfer byte by byte.
type Verbose struct {
	out io.Writer
}

func NewVerbose(out io.Writer) *Verbose {
	if out == nil {
		out = os.Stdout
	}
	return &Verbose{out: out}
}

func (v *Verbose) Begin(name string, total int64) {
	fmt.Fprintf(v.out, "Transferring %s (%d bytes)\n", name, total)
}

func (v *Verbose) Update(transferred, total int64) {
	fmt.Fprintf(v.out, "Transferred: %d/%d\n", transferred, total)
}

func (v *Verbose) End(name string, err error) {
	if err != nil {
		fmt.Fprintf(v.out, "Transfer of %s failed\n", name)
		return
	}
	fmt.Fprintf(v.out, "Transfer of %s completed\n", name)
}

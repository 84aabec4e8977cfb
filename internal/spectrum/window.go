// SPDX-License-Identifier: MIT
package spectrum

import (
	"fmt"
	"strings"

	"filterstream/internal/errs"

	"gonum.org/v1/gonum/dsp/window"
)

// WindowFunc selects the window applied before the forward transform.
type WindowFunc int

// Available window functions.
const (
	Rectangular WindowFunc = iota
	BartlettHann
	Blackman
	BlackmanNuttall
	Hann
	Hamming
	Lanczos
	Nuttall
)

// String returns the canonical window name.
func (w WindowFunc) String() string {
	switch w {
	case Rectangular:
		return "rectangular"
	case BartlettHann:
		return "bartletthann"
	case Blackman:
		return "blackman"
	case BlackmanNuttall:
		return "blackmannuttall"
	case Hann:
		return "hann"
	case Hamming:
		return "hamming"
	case Lanczos:
		return "lanczos"
	case Nuttall:
		return "nuttall"
	default:
		return fmt.Sprintf("window(%d)", int(w))
	}
}

// ParseWindowFunc converts a case-insensitive name to a WindowFunc. Unknown
// names return Hann together with an error.
func ParseWindowFunc(name string) (WindowFunc, error) {
	switch strings.ToLower(name) {
	case "rectangular", "rect", "none", "":
		return Rectangular, nil
	case "bartletthann":
		return BartlettHann, nil
	case "blackman":
		return Blackman, nil
	case "blackmannuttall":
		return BlackmanNuttall, nil
	case "hann", "hanning":
		return Hann, nil
	case "hamming":
		return Hamming, nil
	case "lanczos":
		return Lanczos, nil
	case "nuttall":
		return Nuttall, nil
	default:
		return Hann, fmt.Errorf("%w: unknown window function %q", errs.ErrInvalidConfiguration, name)
	}
}

// apply multiplies seq by the window in place.
func (w WindowFunc) apply(seq []float64) {
	switch w {
	case BartlettHann:
		window.BartlettHann(seq)
	case Blackman:
		window.Blackman(seq)
	case BlackmanNuttall:
		window.BlackmanNuttall(seq)
	case Hann:
		window.Hann(seq)
	case Hamming:
		window.Hamming(seq)
	case Lanczos:
		window.Lanczos(seq)
	case Nuttall:
		window.Nuttall(seq)
	default:
		window.Rectangular(seq)
	}
}

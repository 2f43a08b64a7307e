//go:build !linux

package futex

import (
	"errors"
	"time"
)

var errUnsupported = errors.New("futex: unsupported platform")

func New(_ []byte) (*Word, error) { return nil, errUnsupported }

func (w *Word) Load() uint32                              { return 0 }
func (w *Word) Store(_ uint32)                             {}
func (w *Word) Wait(_ uint32) error                         { return errUnsupported }
func (w *Word) WaitTimeout(_ uint32, _ time.Duration) error { return errUnsupported }
func (w *Word) Wake(_ uint32) (int, error)                  { return 0, errUnsupported }
func (w *Word) Post(_ uint32) (int, error)                  { return 0, errUnsupported }
func (w *Word) PostWithValue(_ uint32, _ uint32) (int, error) {
	return 0, errUnsupported
}

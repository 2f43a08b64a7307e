//go:build !linux

package shm

func Create(_, _ string, _ int) (*Region, error) {
	return nil, ErrUnsupported
}

func Attach(_, _ string, _ int) (*Region, error) {
	return nil, ErrUnsupported
}

func OpenOrCreate(_, _ string, _ int) (*Region, error) {
	return nil, ErrUnsupported
}

func (r *Region) Close(_ bool) error {
	return ErrUnsupported
}

package transport

import (
	"io"

	"github.com/semmidev/kibotos/internal/domain"
)

// progressReader reports cumulative bytes read through it. Reads are
// sequential, so the reported counts are monotonic by construction.
type progressReader struct {
	r        io.Reader
	total    int64
	read     int64
	progress domain.ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.read += int64(n)
		if p.progress != nil {
			p.progress(p.read, p.total)
		}
	}
	return n, err
}

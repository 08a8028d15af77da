package infra

import (
	"errors"
	"hash/crc32"

	"github.com/eliteGoblin/ccswitch/internal/domain"
)

// MaxChecksumSize is the largest file whose content is checksummed.
const MaxChecksumSize = 1 << 20

// FileProber implements domain.Prober.
type FileProber struct {
	fs domain.FileSystem
}

// NewProber creates a prober reading through fsys.
func NewProber(fsys domain.FileSystem) *FileProber {
	return &FileProber{fs: fsys}
}

// Probe stats path and checksums its content unless it exceeds MaxChecksumSize.
// Not-exist causes stay matchable with errors.Is(err, fs.ErrNotExist).
func (p *FileProber) Probe(path string) (domain.Fingerprint, error) {
	info, err := p.fs.Stat(path)
	if err != nil {
		return domain.Fingerprint{}, domain.NewError(domain.ErrFileSystem, "probe", path, err)
	}
	if info.IsDir() {
		return domain.Fingerprint{}, domain.NewError(domain.ErrFileSystem, "probe", path, errors.New("is a directory"))
	}

	fp := domain.Fingerprint{
		ModifiedTime: info.ModTime(),
		Size:         info.Size(),
	}
	if info.Size() > MaxChecksumSize {
		return fp, nil
	}

	data, err := p.fs.ReadFile(path)
	if err != nil {
		return domain.Fingerprint{}, domain.NewError(domain.ErrFileSystem, "probe", path, err)
	}
	fp.Checksum = crc32.ChecksumIEEE(data)
	return fp, nil
}

var _ domain.Prober = (*FileProber)(nil)

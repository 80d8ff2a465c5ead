package archive

import "fmt"

// Backend types accepted by New.
const (
	TypeLocalFS = "localfs"
	TypeS3      = "s3"
)

// Config selects and configures a storage backend.
type Config struct {
	Type string
	Path string // localfs root
	S3   S3Config
}

// New builds the backend named by cfg.Type. An empty type means localfs.
func New(cfg Config) (Storage, error) {
	switch cfg.Type {
	case "", TypeLocalFS:
		path := cfg.Path
		if path == "" {
			path = "."
		}
		return NewLocalFS(path)
	case TypeS3:
		return NewS3(cfg.S3)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

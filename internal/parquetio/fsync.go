package parquetio

import "github.com/xitongsys/parquet-go-source/local"

// syncLocalFile fsyncs the file backing a local Parquet writer before it is
// closed and renamed into place, matching internal/fsatomic's
// write-fsync-rename guarantee for every other atomic writer in the
// module. source.ParquetFile doesn't expose Sync itself, so this reaches
// through to the concrete *local.LocalFile's underlying *os.File.
func syncLocalFile(fw interface{ Close() error }) error {
	if lf, ok := fw.(*local.LocalFile); ok && lf.File != nil {
		return lf.File.Sync()
	}
	return nil
}

//go:build linux || darwin

package fsatomic

import "golang.org/x/sys/unix"

func hasFreeSpace(dir string, requiredBytes int64) (bool, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(dir, &stat); err != nil {
		return false, err
	}
	available := int64(stat.Bavail) * int64(stat.Bsize)
	return available >= requiredBytes, nil
}

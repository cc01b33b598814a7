//go:build !linux && !darwin

package fsatomic

func hasFreeSpace(dir string, requiredBytes int64) (bool, error) {
	return true, nil
}

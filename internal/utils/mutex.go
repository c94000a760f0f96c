package utils

import "sync"

var gdalMu sync.Mutex

// WithGDAL serializes dataset open/read/write calls. Concurrent periods share one
// GDAL block cache and driver manager.
func WithGDAL(fn func() error) error {
	gdalMu.Lock()
	defer gdalMu.Unlock()
	return fn()
}

//go:build unix

package main

import (
	"fmt"
	"syscall"

	"github.com/bigkaa/tempstore/internal/api/handlers"
)

// statfsUsage — ёмкость файловой системы, на которой лежит dir.
// used считается по свободным блокам, available — по блокам,
// доступным непривилегированному процессу.
func statfsUsage(dir string) handlers.DiskUsageFunc {
	return func() (total, used, available int64, err error) {
		var st syscall.Statfs_t
		if err := syscall.Statfs(dir, &st); err != nil {
			return 0, 0, 0, fmt.Errorf("statfs %s: %w", dir, err)
		}
		bsize := int64(st.Bsize)
		total = int64(st.Blocks) * bsize
		used = total - int64(st.Bfree)*bsize
		available = int64(st.Bavail) * bsize
		return total, used, available, nil
	}
}

package pool

// Size classes served by the byte-level pool: fixed, 16-byte-aligned
// block sizes. Requests above MaxBlockSize fall back to the host
// allocator; smaller requests round up to the next class.
const (
	MinBlockSize = 16
	MaxBlockSize = 128
	classStep    = 16
	NumClasses   = (MaxBlockSize-MinBlockSize)/classStep + 1
)

var sizeClasses = [NumClasses]uint32{16, 32, 48, 64, 80, 96, 112, 128}

// classFor returns the size-class index and block size serving a request of
// size bytes, or ok=false if size exceeds MaxBlockSize (host-allocator
// fallback territory).
func classFor(size int) (idx int, blockSize uint32, ok bool) {
	if size <= 0 {
		size = 1
	}
	if size > MaxBlockSize {
		return 0, 0, false
	}
	for i, sc := range sizeClasses {
		if uint32(size) <= sc {
			return i, sc, true
		}
	}
	return 0, 0, false
}

// validPageSizesKiB are the page sizes WithPageSize recognizes.
var validPageSizesKiB = [...]int{16, 32, 64, 128, 256, 512, 1024, 2048, 4096}

// DefaultPageSize is the pool's default page size: 512 KiB.
const DefaultPageSize = 512 * 1024

// HeartbeatThreshold is the per-thread allocation count after which a
// thread-local cache collects cross-thread frees instead of growing.
const HeartbeatThreshold = 4096

func validPageSize(bytes uint32) bool {
	kib := int(bytes / 1024)
	if kib*1024 != int(bytes) {
		return false
	}
	for _, v := range validPageSizesKiB {
		if v == kib {
			return true
		}
	}
	return false
}

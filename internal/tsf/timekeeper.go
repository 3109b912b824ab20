package tsf

import (
	"sync"
	"time"
)

// PrefixLen is the exact byte length of a dated log-line prefix:
//
//	2015-07-15T14:53:51.979+0200 [I] 00001fdc
//	[----------- 28 -----------] [3] [--8--]
//
// 28 (timestamp) + 1 (space) + 3 ("[X]") + 1 (space) + 8 (tid) + 1 (space)
// = 42, matching the layout cited in original_source/uberlog.h's Log().
const PrefixLen = 42

const timestampLen = 28

// TimeKeeper builds the 28-byte timestamp portion of the prefix,
// caching the 10-byte date and 5-byte timezone-offset strings across
// calls within the same local day so that only the hour/minute/second/
// millisecond digits need to be recomputed per call — grounded on
// uberlog::internal::TimeKeeper in original_source/uberlog.h, whose
// stated purpose is exactly this: avoid recomputing the calendar day on
// every log call.
type TimeKeeper struct {
	mu       sync.Mutex
	dayStart time.Time
	dayEnd   time.Time
	dateStr  string
	tzStr    string
}

// NewTimeKeeper returns a TimeKeeper primed for the current local day.
func NewTimeKeeper() *TimeKeeper {
	tk := &TimeKeeper{}
	tk.refresh(time.Now())
	return tk
}

func (tk *TimeKeeper) refresh(now time.Time) {
	loc := now.Location()
	y, m, d := now.Date()
	tk.dayStart = time.Date(y, m, d, 0, 0, 0, 0, loc)
	tk.dayEnd = tk.dayStart.AddDate(0, 0, 1)
	tk.dateStr = tk.dayStart.Format("2006-01-02")

	_, offsetSec := now.Zone()
	sign := byte('+')
	if offsetSec < 0 {
		sign = '-'
		offsetSec = -offsetSec
	}
	offMin := offsetSec / 60
	buf := make([]byte, 0, 5)
	buf = append(buf, sign)
	buf = appendDigits2(buf, offMin/60)
	buf = appendDigits2(buf, offMin%60)
	tk.tzStr = string(buf)
}

// AppendTimestamp appends the 28-byte "YYYY-MM-DDTHH:MM:SS.mmm±HHMM"
// timestamp for now to dst.
func (tk *TimeKeeper) AppendTimestamp(dst []byte, now time.Time) []byte {
	tk.mu.Lock()
	if now.Before(tk.dayStart) || !now.Before(tk.dayEnd) {
		tk.refresh(now)
	}
	date, tz := tk.dateStr, tk.tzStr
	tk.mu.Unlock()

	dst = append(dst, date...)
	dst = append(dst, 'T')
	h, m, s := now.Clock()
	dst = appendDigits2(dst, h)
	dst = append(dst, ':')
	dst = appendDigits2(dst, m)
	dst = append(dst, ':')
	dst = appendDigits2(dst, s)
	dst = append(dst, '.')
	dst = appendDigits3(dst, now.Nanosecond()/1_000_000)
	dst = append(dst, tz...)
	return dst
}

// AppendPrefix appends the full 42-byte "<timestamp> [X] tttttttt "
// prefix to dst, where levelChar is the single severity letter and tid is
// the 32-bit id rendered as 8 lowercase hex digits.
func (tk *TimeKeeper) AppendPrefix(dst []byte, now time.Time, levelChar byte, tid uint32) []byte {
	dst = tk.AppendTimestamp(dst, now)
	dst = append(dst, ' ', '[', levelChar, ']', ' ')
	dst = appendHex8(dst, tid)
	dst = append(dst, ' ')
	return dst
}

func appendDigits2(dst []byte, v int) []byte {
	return append(dst, byte('0'+(v/10)%10), byte('0'+v%10))
}

func appendDigits3(dst []byte, v int) []byte {
	return append(dst, byte('0'+(v/100)%10), byte('0'+(v/10)%10), byte('0'+v%10))
}

const hexDigits = "0123456789abcdef"

func appendHex8(dst []byte, v uint32) []byte {
	var buf [8]byte
	for i := 7; i >= 0; i-- {
		buf[i] = hexDigits[v&0xf]
		v >>= 4
	}
	return append(dst, buf[:]...)
}

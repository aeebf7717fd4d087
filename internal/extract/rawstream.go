package extract

import (
	"bytes"
	"regexp"
	"strconv"
)

// The pdf package only decodes Flate and ASCII85 streams, so JPEG and
// JPEG 2000 images are copied verbatim out of the file. rawStreams indexes
// the stream objects of the file once and matches image XObjects against
// them by filter, dimensions and length.

var (
	reImageSubtype = regexp.MustCompile(`/Subtype\s*/Image\b`)
	reWidth        = regexp.MustCompile(`/Width\s+(\d+)`)
	reHeight       = regexp.MustCompile(`/Height\s+(\d+)`)
	reLength       = regexp.MustCompile(`/Length\s+(\d+)(\s+\d+\s+R)?`)
)

const maxHeaderScan = 4096

type rawStream struct {
	filter        string
	width, height int64
	start, end    int
	used          bool
}

type rawStreams struct {
	data    []byte
	indexed bool
	images  []rawStream
}

func newRawStreams(data []byte) *rawStreams {
	return &rawStreams{data: data}
}

// lookup returns the undecoded bytes of an image stream with the given
// filter, dimensions and declared length. Streams not handed out before are
// preferred, so identical-looking XObjects get distinct bytes in file
// order; within each group an exact length match wins.
func (r *rawStreams) lookup(filter string, width, height, length int64) ([]byte, bool) {
	if !r.indexed {
		r.index()
		r.indexed = true
	}

	best, bestRank := -1, 0
	for i, s := range r.images {
		if s.filter != filter || s.width != width || s.height != height {
			continue
		}
		rank := 1
		if int64(s.end-s.start) == length {
			rank++
		}
		if !s.used {
			rank += 2
		}
		if rank > bestRank {
			best, bestRank = i, rank
		}
	}
	if best < 0 {
		return nil, false
	}
	r.images[best].used = true
	s := r.images[best]
	return r.data[s.start:s.end], true
}

func (r *rawStreams) index() {
	data := r.data
	keyword := []byte("stream")

	pos := 0
	for pos < len(data) {
		i := bytes.Index(data[pos:], keyword)
		if i < 0 {
			return
		}
		i += pos
		pos = i + len(keyword)

		// Skip the tail of "endstream" and anything not followed by an EOL.
		if i >= 3 && string(data[i-3:i]) == "end" {
			continue
		}
		start := pos
		switch {
		case start < len(data) && data[start] == '\r':
			start++
			if start < len(data) && data[start] == '\n' {
				start++
			}
		case start < len(data) && data[start] == '\n':
			start++
		default:
			continue
		}

		hdr := r.header(i)
		end := streamEnd(data, start, hdr)
		if end < 0 {
			return
		}
		pos = end

		if !reImageSubtype.Match(hdr) {
			continue
		}
		filter := ""
		switch {
		case bytes.Contains(hdr, []byte("/DCTDecode")):
			filter = "DCTDecode"
		case bytes.Contains(hdr, []byte("/JPXDecode")):
			filter = "JPXDecode"
		default:
			continue
		}
		r.images = append(r.images, rawStream{
			filter: filter,
			width:  intField(reWidth, hdr),
			height: intField(reHeight, hdr),
			start:  start,
			end:    end,
		})
	}
}

// header returns the object dictionary preceding the stream keyword at i.
func (r *rawStreams) header(i int) []byte {
	from := i - maxHeaderScan
	if from < 0 {
		from = 0
	}
	hdr := r.data[from:i]
	if j := bytes.LastIndex(hdr, []byte("obj")); j >= 0 {
		hdr = hdr[j:]
	}
	return hdr
}

// streamEnd finds the end of stream data starting at start. A direct /Length
// is trusted when "endstream" follows it; otherwise the data runs to the next
// "endstream" keyword minus its end-of-line marker.
func streamEnd(data []byte, start int, hdr []byte) int {
	if m := reLength.FindSubmatch(hdr); m != nil && len(m[2]) == 0 {
		if n, err := strconv.Atoi(string(m[1])); err == nil {
			end := start + n
			if end <= len(data) && bytes.HasPrefix(bytes.TrimLeft(data[end:], "\r\n \t"), []byte("endstream")) {
				return end
			}
		}
	}

	k := bytes.Index(data[start:], []byte("endstream"))
	if k < 0 {
		return -1
	}
	end := start + k
	if end > start && data[end-1] == '\n' {
		end--
	}
	if end > start && data[end-1] == '\r' {
		end--
	}
	return end
}

func intField(re *regexp.Regexp, hdr []byte) int64 {
	m := re.FindSubmatch(hdr)
	if m == nil {
		return -1
	}
	n, err := strconv.ParseInt(string(m[1]), 10, 64)
	if err != nil {
		return -1
	}
	return n
}

// Package wordlist supplies the human-readable identifier fragments used to
// build peer ids, and the peer-id construction logic itself. The content is
// pure cosmetic uniqueness: collisions are tolerated because cluster
// membership is keyed by the full identity string, and peers expire
// independently (see spec section 3, "Peer identity").
package wordlist

import (
	"bufio"
	"embed"
	"fmt"
	"math/rand"
	"os"
	"strings"
)

//go:embed words.txt
var bundled embed.FS

// List is an immutable, process-wide table of identifier fragments.
type List struct {
	words []string
}

// Load reads the fragment list from path. An empty path loads the bundled
// default shipped with the binary. A non-empty path that cannot be read is
// a fatal startup error per spec section 6 ("Missing file ⇒ distributor
// fails to start").
func Load(path string) (*List, error) {
	var r *bufio.Scanner
	if path == "" {
		f, err := bundled.Open("words.txt")
		if err != nil {
			return nil, fmt.Errorf("wordlist: bundled words.txt: %w", err)
		}
		defer f.Close()
		r = bufio.NewScanner(f)
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("wordlist: open %q: %w", path, err)
		}
		defer f.Close()
		r = bufio.NewScanner(f)
	}

	var words []string
	for r.Scan() {
		w := strings.TrimSpace(r.Text())
		if w == "" {
			continue
		}
		words = append(words, w)
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("wordlist: scan: %w", err)
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("wordlist: empty word list")
	}
	return &List{words: words}, nil
}

// Fragment returns a pseudo-random entry from the list.
func (l *List) Fragment() string {
	return l.words[rand.Intn(len(l.words))]
}

// PeerID builds a peer identity of the form "<hostname>/<fragment>".
// Construction is stable for the lifetime of the process: callers invoke
// this once at startup and hold on to the result.
func PeerID(l *List) (string, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return "", fmt.Errorf("wordlist: hostname: %w", err)
	}
	return hostname + "/" + l.Fragment(), nil
}

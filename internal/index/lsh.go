package index

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"textdedup/internal/domain"
	"textdedup/internal/signature"
)

var (
	ErrDuplicateID  = errors.New("id already indexed")
	ErrSizeMismatch = errors.New("signature size mismatch")
)

// LSH is an in-memory MinHash LSH index. Signatures are split into bands
// of rows; documents sharing any band bucket become candidates, candidates
// whose estimated similarity is at least the threshold are linked, and
// groups are the connected components of those links.
//
// Empty signatures are accepted but never linked to anything.
type LSH struct {
	mu        sync.RWMutex
	threshold float64
	size      int
	bands     int
	rows      int
	ids       []string
	sigs      []domain.Signature
	positions map[string]int
	buckets   []map[string][]int
}

// NewLSH creates an index for signatures of the given size. When bands and
// rows are both zero they are derived with OptimalParams.
func NewLSH(threshold float64, size, bands, rows int) (*LSH, error) {
	if threshold <= 0 || threshold > 1 {
		return nil, fmt.Errorf("%w: threshold must be in (0,1], got %v", domain.ErrConfiguration, threshold)
	}
	if size <= 0 {
		return nil, fmt.Errorf("%w: signature size must be > 0, got %d", domain.ErrConfiguration, size)
	}
	if bands == 0 && rows == 0 {
		bands, rows = OptimalParams(threshold, size)
	}
	if bands <= 0 || rows <= 0 || bands*rows > size {
		return nil, fmt.Errorf("%w: invalid banding %dx%d for signature size %d", domain.ErrConfiguration, bands, rows, size)
	}
	l := &LSH{threshold: threshold, size: size, bands: bands, rows: rows}
	l.Reset()
	return l, nil
}

// Params returns the number of bands and rows per band.
func (l *LSH) Params() (int, int) { return l.bands, l.rows }

func (l *LSH) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ids = nil
	l.sigs = nil
	l.positions = make(map[string]int)
	l.buckets = make([]map[string][]int, l.bands)
	for i := range l.buckets {
		l.buckets[i] = make(map[string][]int)
	}
}

func (l *LSH) Add(id string, sig domain.Signature) error {
	if len(sig) != l.size {
		return fmt.Errorf("%w: %s has %d components, want %d", ErrSizeMismatch, id, len(sig), l.size)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.positions[id]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}
	pos := len(l.ids)
	l.ids = append(l.ids, id)
	l.sigs = append(l.sigs, sig)
	l.positions[id] = pos
	if signature.IsEmpty(sig) {
		return nil
	}
	for b := 0; b < l.bands; b++ {
		key := bandKey(sig[b*l.rows : (b+1)*l.rows])
		l.buckets[b][key] = append(l.buckets[b][key], pos)
	}
	return nil
}

// Groups returns the multi-member groups. Members keep insertion order and
// groups are ordered by their first member.
func (l *LSH) Groups() []domain.Group {
	l.mu.RLock()
	defer l.mu.RUnlock()

	uf := newUnionFind(len(l.ids))
	for b := 0; b < l.bands; b++ {
		for _, members := range l.buckets[b] {
			for i := 0; i < len(members); i++ {
				for j := i + 1; j < len(members); j++ {
					x, y := members[i], members[j]
					if uf.find(x) == uf.find(y) {
						continue
					}
					sim, err := signature.Similarity(l.sigs[x], l.sigs[y])
					if err == nil && sim >= l.threshold {
						uf.union(x, y)
					}
				}
			}
		}
	}

	byRoot := make(map[int][]int)
	var roots []int
	for pos := range l.ids {
		r := uf.find(pos)
		if _, ok := byRoot[r]; !ok {
			roots = append(roots, r)
		}
		byRoot[r] = append(byRoot[r], pos)
	}
	var groups []domain.Group
	for _, r := range roots {
		positions := byRoot[r]
		if len(positions) < 2 {
			continue
		}
		g := domain.Group{Members: make([]string, len(positions))}
		for i, pos := range positions {
			g.Members[i] = l.ids[pos]
		}
		groups = append(groups, g)
	}
	return groups
}

func bandKey(rows []uint64) string {
	buf := make([]byte, 8*len(rows))
	for i, v := range rows {
		binary.LittleEndian.PutUint64(buf[i*8:], v)
	}
	return string(buf)
}

// unionFind keeps the smallest position as the root of every component.
type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	return &unionFind{parent: p}
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(x, y int) {
	rx, ry := u.find(x), u.find(y)
	if rx == ry {
		return
	}
	if rx < ry {
		u.parent[ry] = rx
	} else {
		u.parent[rx] = ry
	}
}

package bucketing

import (
	"context"
	"hash"
	"sync"
	"time"

	"booking-service/internal/config"

	"github.com/spaolacci/murmur3"
)

// BucketingManager maps identifiers onto a fixed number of buckets with
// murmur3. The same id always lands in the same bucket for a given count.
type BucketingManager struct {
	patientBuckets int
	hasherPool     sync.Pool
}

func NewBucketingManager(cfg *config.Config) *BucketingManager {
	buckets := cfg.Bucketing.PatientBuckets
	if buckets <= 0 {
		buckets = 1
	}
	return &BucketingManager{
		patientBuckets: buckets,
		hasherPool: sync.Pool{
			New: func() interface{} {
				return murmur3.New64()
			},
		},
	}
}

// PatientBucket returns the ledger partition bucket for a patient id (0 to PatientBuckets-1).
func (bm *BucketingManager) PatientBucket(patientID string) int {
	return int(bm.getHash(patientID) % uint64(bm.patientBuckets))
}

// DateBucket returns the UTC day used as the second partition component.
func (bm *BucketingManager) DateBucket(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func (bm *BucketingManager) PatientBuckets() int {
	return bm.patientBuckets
}

func (bm *BucketingManager) getHash(key string) uint64 {
	hasher := bm.hasherPool.Get().(hash.Hash64)
	defer bm.hasherPool.Put(hasher)

	hasher.Reset()
	hasher.Write([]byte(key))
	return hasher.Sum64()
}

// StripedLocker serializes work per key inside one process using a fixed
// set of single-slot semaphores. Distinct keys may share a stripe.
type StripedLocker struct {
	stripes []chan struct{}
}

func NewStripedLocker(stripes int) *StripedLocker {
	if stripes <= 0 {
		stripes = 64
	}
	l := &StripedLocker{stripes: make([]chan struct{}, stripes)}
	for i := range l.stripes {
		l.stripes[i] = make(chan struct{}, 1)
	}
	return l
}

// Acquire waits until the stripe for key is free or ctx is done. It has the
// same shape as the Redis locker so services can use either; ttl is ignored.
func (l *StripedLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sem := l.stripes[murmur3.Sum64([]byte(key))%uint64(len(l.stripes))]
	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	var once sync.Once
	return func() { once.Do(func() { <-sem }) }, nil
}

package application

import (
	"hash/fnv"
	"sync"

	"admission-gateway/middleware/admission/domain"
)

const keyLockShards = 64

// keyLocks serializa operações da mesma chave sem um mutex global.
// Chaves diferentes podem cair no mesmo shard; isso só custa espera, nunca correção.
type keyLocks struct {
	shards [keyLockShards]sync.Mutex
}

func (k *keyLocks) lock(key domain.Key) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	m := &k.shards[h.Sum32()%keyLockShards]
	m.Lock()
	return m.Unlock
}

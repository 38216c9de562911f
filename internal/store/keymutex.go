package store

import (
	"hash/fnv"
	"sync"
)

const lockShards = 64

// keyMutex 按 key 哈希分片的互斥锁，保证同一商品的写序列互斥，
// 不同商品大概率落在不同分片上并行推进。
type keyMutex struct {
	shards [lockShards]sync.Mutex
}

// Lock 锁住 key 所在分片，返回对应的解锁函数。
func (m *keyMutex) Lock(key string) func() {
	h := fnv.New32a()
	h.Write([]byte(key))
	mu := &m.shards[h.Sum32()%lockShards]
	mu.Lock()
	return mu.Unlock
}

package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/xilian/asset-registry/cmd/assetd/apperrors"
	"github.com/xilian/asset-registry/cmd/assetd/models"
	"github.com/xilian/asset-registry/common/logger"
	"github.com/xilian/asset-registry/common/redis"
)

func testLogger() *logger.Logger {
	return logger.New("error", "json")
}

// memNodeStore is an in-memory NodeStore enforcing the same storage-level
// guarantees as the Postgres repository: sibling code uniqueness under a
// lock, and a child-guarded delete.
type memNodeStore struct {
	mu    sync.Mutex
	nodes map[uuid.UUID]*models.AssetNode
}

func newMemNodeStore() *memNodeStore {
	return &memNodeStore{nodes: make(map[uuid.UUID]*models.AssetNode)}
}

func (s *memNodeStore) Insert(ctx context.Context, node *models.AssetNode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.nodes {
		if existing.Code == node.Code && sameParent(existing.ParentNodeID, node.ParentNodeID) {
			return apperrors.New(apperrors.KindDuplicateCode,
				"code %q already used by a sibling", node.Code)
		}
	}

	copied := *node
	s.nodes[node.NodeID] = &copied
	return nil
}

func (s *memNodeStore) GetByID(ctx context.Context, nodeID uuid.UUID) (*models.AssetNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.nodes[nodeID]
	if !ok {
		return nil, apperrors.New(apperrors.KindNodeNotFound, "node %s not found", nodeID)
	}
	copied := *node
	return &copied, nil
}

func (s *memNodeStore) Update(ctx context.Context, node *models.AssetNode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[node.NodeID]; !ok {
		return apperrors.New(apperrors.KindNodeNotFound, "node %s not found", node.NodeID)
	}
	copied := *node
	s.nodes[node.NodeID] = &copied
	return nil
}

func (s *memNodeStore) Delete(ctx context.Context, nodeID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[nodeID]; !ok {
		return apperrors.New(apperrors.KindNodeNotFound, "node %s not found", nodeID)
	}
	for _, node := range s.nodes {
		if node.ParentNodeID != nil && *node.ParentNodeID == nodeID {
			return apperrors.New(apperrors.KindHasChildren, "node %s still has children", nodeID)
		}
	}

	delete(s.nodes, nodeID)
	return nil
}

func (s *memNodeStore) HasChildren(ctx context.Context, nodeID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, node := range s.nodes {
		if node.ParentNodeID != nil && *node.ParentNodeID == nodeID {
			return true, nil
		}
	}
	return false, nil
}

func (s *memNodeStore) ListByLevel(ctx context.Context, level int) ([]*models.AssetNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var nodes []*models.AssetNode
	for _, node := range s.nodes {
		if node.Level == level {
			copied := *node
			nodes = append(nodes, &copied)
		}
	}
	return nodes, nil
}

func (s *memNodeStore) ListByParent(ctx context.Context, parentID uuid.UUID) ([]*models.AssetNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var nodes []*models.AssetNode
	for _, node := range s.nodes {
		if node.ParentNodeID != nil && *node.ParentNodeID == parentID {
			copied := *node
			nodes = append(nodes, &copied)
		}
	}
	return nodes, nil
}

func (s *memNodeStore) ListRoots(ctx context.Context) ([]*models.AssetNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var nodes []*models.AssetNode
	for _, node := range s.nodes {
		if node.ParentNodeID == nil {
			copied := *node
			nodes = append(nodes, &copied)
		}
	}
	return nodes, nil
}

func sameParent(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// memCounterStore is an in-memory CounterStore with the atomic-increment
// guarantee of the Postgres upsert
type memCounterStore struct {
	mu       sync.Mutex
	counters map[string]int64

	// failures lets tests inject transient conflicts: scope -> count of
	// increments that should fail before one succeeds
	failures map[string]int
}

func newMemCounterStore() *memCounterStore {
	return &memCounterStore{
		counters: make(map[string]int64),
		failures: make(map[string]int),
	}
}

func (s *memCounterStore) Increment(ctx context.Context, scope string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failures[scope] > 0 {
		s.failures[scope]--
		return 0, apperrors.New(apperrors.KindAllocationConflict,
			"contention while allocating for scope %q", scope)
	}

	s.counters[scope]++
	return s.counters[scope], nil
}

func (s *memCounterStore) Current(ctx context.Context, scope string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.counters[scope], nil
}

// memRuleStore is an in-memory RuleStore
type memRuleStore struct {
	mu    sync.Mutex
	rules map[string]*models.CodeRule
}

func newMemRuleStore() *memRuleStore {
	return &memRuleStore{rules: make(map[string]*models.CodeRule)}
}

func (s *memRuleStore) Insert(ctx context.Context, rule *models.CodeRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rules[rule.RuleCode]; ok {
		return apperrors.New(apperrors.KindInvalidRuleDefinition,
			"rule %q already registered", rule.RuleCode)
	}
	copied := *rule
	s.rules[rule.RuleCode] = &copied
	return nil
}

func (s *memRuleStore) GetByCode(ctx context.Context, ruleCode string) (*models.CodeRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rule, ok := s.rules[ruleCode]
	if !ok {
		return nil, apperrors.New(apperrors.KindRuleNotFound, "rule %q not found", ruleCode)
	}
	copied := *rule
	return &copied, nil
}

func (s *memRuleStore) List(ctx context.Context) ([]*models.CodeRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rules []*models.CodeRule
	for _, rule := range s.rules {
		copied := *rule
		rules = append(rules, &copied)
	}
	return rules, nil
}

// memVocab is an in-memory VocabularyReader mirroring the dictionary
// store's hash layout
type memVocab struct {
	hashes map[string]map[string]string
}

func newMemVocab() *memVocab {
	return &memVocab{hashes: make(map[string]map[string]string)}
}

func (v *memVocab) set(key, field, value string) {
	if v.hashes[key] == nil {
		v.hashes[key] = make(map[string]string)
	}
	v.hashes[key][field] = value
}

func (v *memVocab) HGet(ctx context.Context, key, field string) (string, error) {
	value, ok := v.hashes[key][field]
	if !ok {
		return "", fmt.Errorf("%w: %s in %s", redis.ErrFieldNotFound, field, key)
	}
	return value, nil
}

func (v *memVocab) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	vocab := make(map[string]string, len(v.hashes[key]))
	for field, value := range v.hashes[key] {
		vocab[field] = value
	}
	return vocab, nil
}

// Test fixture helpers

func newTestRegistry(store RuleStore) *RuleRegistry {
	return NewRuleRegistry(store, nil, 0, NewGuardEvaluator(), testLogger())
}

func newTestAllocator(store CounterStore) *SequenceAllocator {
	return NewSequenceAllocator(store, 3, 0, testLogger())
}

// newTestEngine wires a complete generator + hierarchy on in-memory stores
func newTestEngine() (*Hierarchy, *CodeGenerator, *memNodeStore, *memCounterStore, *memRuleStore, *memVocab) {
	nodes := newMemNodeStore()
	counters := newMemCounterStore()
	rules := newMemRuleStore()
	vocab := newMemVocab()

	guards := NewGuardEvaluator()
	registry := NewRuleRegistry(rules, nil, 0, guards, testLogger())
	resolver := NewCategoryResolver(vocab, "dict:", testLogger())
	allocator := NewSequenceAllocator(counters, 3, 0, testLogger())
	generator := NewCodeGenerator(registry, resolver, allocator, guards, testLogger())
	hierarchy := NewHierarchy(nodes, generator, testLogger())

	return hierarchy, generator, nodes, counters, rules, vocab
}

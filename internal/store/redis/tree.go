package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/marksync/internal/domain"
	"github.com/MrSnakeDoc/marksync/internal/store"
	"github.com/MrSnakeDoc/marksync/internal/tree"
)

// storedNode is a node without its children; child order lives in a list.
type storedNode struct {
	ID        string `json:"id"`
	ParentID  string `json:"parentId,omitempty"`
	Title     string `json:"title"`
	URL       string `json:"url,omitempty"`
	DateAdded int64  `json:"dateAdded,omitempty"`
}

// Store keeps the local bookmark tree in Redis. Writes from one process are
// serialized; the store assumes a single agent owns the keys.
type Store struct {
	mu     sync.Mutex
	client *redis.Client
	now    func() time.Time
}

// NewStore returns a tree store over client, creating the root and its
// containers when they are missing.
func NewStore(ctx context.Context, client *redis.Client) (*Store, error) {
	s := &Store{client: client, now: time.Now}
	if err := s.ensureRoot(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureRoot(ctx context.Context) error {
	root := domain.NewRootTree(s.now().UnixMilli())

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, KeyNextID, firstNodeID, 0)
		for _, n := range append([]*domain.Node{root}, root.Children...) {
			if err := s.setNX(ctx, pipe, n); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tree: %w", err)
	}

	linked, err := s.client.LRange(ctx, ChildrenKey(domain.RootID), 0, -1).Result()
	if err != nil {
		return fmt.Errorf("failed to read root children: %w", err)
	}
	for _, c := range root.Children {
		if slices.Contains(linked, c.ID) {
			continue
		}
		if err := s.client.RPush(ctx, ChildrenKey(domain.RootID), c.ID).Err(); err != nil {
			return fmt.Errorf("failed to link container %s: %w", c.ID, err)
		}
	}
	return nil
}

func (s *Store) setNX(ctx context.Context, pipe redis.Pipeliner, n *domain.Node) error {
	data, err := json.Marshal(toStored(n))
	if err != nil {
		return err
	}
	pipe.SetNX(ctx, NodeKey(n.ID), data, 0)
	pipe.SAdd(ctx, KeyAllNodes, n.ID)
	return nil
}

// GetTree loads every node and assembles the tree.
func (s *Store) GetTree(ctx context.Context) (*domain.Node, error) {
	ids, err := s.client.SMembers(ctx, KeyAllNodes).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get node IDs: %w", err)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("root node: %w", store.ErrNotFound)
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = NodeKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get nodes: %w", err)
	}

	nodes := make(map[string]*domain.Node, len(ids))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Skip nodes that couldn't be retrieved
			continue
		}
		var sn storedNode
		if err := json.Unmarshal([]byte(raw), &sn); err != nil {
			return nil, fmt.Errorf("failed to unmarshal node %s: %w", ids[i], err)
		}
		nodes[sn.ID] = fromStored(sn)
	}

	pipe := s.client.Pipeline()
	lists := make(map[string]*redis.StringSliceCmd, len(nodes))
	for id, n := range nodes {
		if n.IsFolder() {
			lists[id] = pipe.LRange(ctx, ChildrenKey(id), 0, -1)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to get child lists: %w", err)
	}
	for id, cmd := range lists {
		for _, childID := range cmd.Val() {
			if child, ok := nodes[childID]; ok {
				nodes[id].Children = append(nodes[id].Children, child)
			}
		}
	}

	root, ok := nodes[domain.RootID]
	if !ok {
		return nil, fmt.Errorf("root node: %w", store.ErrNotFound)
	}
	return root, nil
}

func (s *Store) getNode(ctx context.Context, id string) (*domain.Node, error) {
	data, err := s.client.Get(ctx, NodeKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("node %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get node: %w", err)
	}
	var sn storedNode
	if err := json.Unmarshal(data, &sn); err != nil {
		return nil, fmt.Errorf("failed to unmarshal node: %w", err)
	}
	return fromStored(sn), nil
}

func (s *Store) folder(ctx context.Context, id string) (*domain.Node, error) {
	n, err := s.getNode(ctx, id)
	if err != nil {
		return nil, err
	}
	if !n.IsFolder() {
		return nil, fmt.Errorf("parent %s: %w", id, store.ErrNotFolder)
	}
	return n, nil
}

// Create adds a bookmark, or a folder when p.URL is empty, at the end of the parent.
func (s *Store) Create(ctx context.Context, p store.CreateParams) (*domain.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ParentID == domain.RootID {
		return nil, fmt.Errorf("create under root: %w", store.ErrImmutable)
	}
	if _, err := s.folder(ctx, p.ParentID); err != nil {
		return nil, err
	}

	next, err := s.client.Incr(ctx, KeyNextID).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to allocate node id: %w", err)
	}
	n := &domain.Node{
		ID:        strconv.FormatInt(next, 10),
		ParentID:  p.ParentID,
		Title:     p.Title,
		URL:       p.URL,
		DateAdded: s.now().UnixMilli(),
	}
	data, err := json.Marshal(toStored(n))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal node: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, NodeKey(n.ID), data, 0)
		pipe.SAdd(ctx, KeyAllNodes, n.ID)
		pipe.RPush(ctx, ChildrenKey(p.ParentID), n.ID)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save node: %w", err)
	}
	return n, nil
}

// Update renames a node.
func (s *Store) Update(ctx context.Context, id string, p store.UpdateParams) (*domain.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if domain.IsContainer(id) {
		return nil, fmt.Errorf("update %s: %w", id, store.ErrImmutable)
	}
	n, err := s.getNode(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Title != nil {
		n.Title = *p.Title
	}
	if err := s.save(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// Move reparents a node, appending it to the new parent's children.
func (s *Store) Move(ctx context.Context, id, parentID string) (*domain.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if domain.IsContainer(id) || parentID == domain.RootID {
		return nil, fmt.Errorf("move %s: %w", id, store.ErrImmutable)
	}
	n, err := s.getNode(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.folder(ctx, parentID); err != nil {
		return nil, err
	}
	root, err := s.GetTree(ctx)
	if err != nil {
		return nil, err
	}
	if tree.Find(tree.Find(root, id), parentID) != nil {
		return nil, fmt.Errorf("move %s into %s: %w", id, parentID, store.ErrInvalidMove)
	}

	oldParent := n.ParentID
	n.ParentID = parentID
	data, err := json.Marshal(toStored(n))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal node: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, ChildrenKey(oldParent), 0, id)
		pipe.RPush(ctx, ChildrenKey(parentID), id)
		pipe.Set(ctx, NodeKey(id), data, 0)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to move node: %w", err)
	}
	return n, nil
}

// Remove deletes a node and its subtree.
func (s *Store) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if domain.IsContainer(id) {
		return fmt.Errorf("remove %s: %w", id, store.ErrImmutable)
	}
	root, err := s.GetTree(ctx)
	if err != nil {
		return err
	}
	n := tree.Find(root, id)
	if n == nil {
		return fmt.Errorf("remove %s: %w", id, store.ErrNotFound)
	}

	var ids []string
	var collect func(n *domain.Node)
	collect = func(n *domain.Node) {
		ids = append(ids, n.ID)
		for _, c := range n.Children {
			collect(c)
		}
	}
	collect(n)

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, ChildrenKey(n.ParentID), 0, id)
		for _, nid := range ids {
			pipe.Del(ctx, NodeKey(nid), ChildrenKey(nid))
			pipe.SRem(ctx, KeyAllNodes, nid)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to remove node: %w", err)
	}
	return nil
}

func (s *Store) save(ctx context.Context, n *domain.Node) error {
	data, err := json.Marshal(toStored(n))
	if err != nil {
		return fmt.Errorf("failed to marshal node: %w", err)
	}
	if err := s.client.Set(ctx, NodeKey(n.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save node: %w", err)
	}
	return nil
}

func toStored(n *domain.Node) storedNode {
	return storedNode{ID: n.ID, ParentID: n.ParentID, Title: n.Title, URL: n.URL, DateAdded: n.DateAdded}
}

func fromStored(sn storedNode) *domain.Node {
	return &domain.Node{ID: sn.ID, ParentID: sn.ParentID, Title: sn.Title, URL: sn.URL, DateAdded: sn.DateAdded}
}

var _ store.Store = (*Store)(nil)

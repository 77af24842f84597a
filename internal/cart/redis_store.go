// Package cart keeps each user's pending cart in Redis until checkout.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fsanano/inventory/internal/model"

	"github.com/redis/go-redis/v9"
)

const maxWatchAttempts = 3

var (
	ErrInvalidItem  = errors.New("product_id and quantity must be positive")
	ErrItemNotFound = errors.New("item not in cart")
)

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

type Store struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

func NewStore(client *redis.Client) *Store {
	return &Store{client: client, ttl: 7 * 24 * time.Hour, now: time.Now}
}

// Get returns the user's cart; a missing key is an empty cart.
func (s *Store) Get(ctx context.Context, userID int64) (*model.Cart, error) {
	return s.load(ctx, s.client, userID)
}

// AddItem adds quantity to the line for productID, creating it if needed.
func (s *Store) AddItem(ctx context.Context, userID, productID int64, quantity int) (*model.Cart, error) {
	if productID <= 0 || quantity <= 0 {
		return nil, ErrInvalidItem
	}
	return s.update(ctx, userID, func(c *model.Cart) error {
		for i := range c.Items {
			if c.Items[i].ProductID == productID {
				c.Items[i].Quantity += quantity
				return nil
			}
		}
		c.Items = append(c.Items, model.CartLine{ProductID: productID, Quantity: quantity})
		return nil
	})
}

func (s *Store) RemoveItem(ctx context.Context, userID, productID int64) (*model.Cart, error) {
	return s.update(ctx, userID, func(c *model.Cart) error {
		for i := range c.Items {
			if c.Items[i].ProductID == productID {
				c.Items = append(c.Items[:i], c.Items[i+1:]...)
				return nil
			}
		}
		return ErrItemNotFound
	})
}

func (s *Store) Clear(ctx context.Context, userID int64) error {
	if err := s.client.Del(ctx, key(userID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// update applies fn under WATCH so concurrent edits of one cart do not
// overwrite each other.
func (s *Store) update(ctx context.Context, userID int64, fn func(*model.Cart) error) (*model.Cart, error) {
	k := key(userID)
	var result *model.Cart

	txf := func(tx *redis.Tx) error {
		c, err := s.load(ctx, tx, userID)
		if err != nil {
			return err
		}
		if err := fn(c); err != nil {
			return err
		}
		c.UpdatedAt = s.now().UTC()

		data, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("marshal cart failed: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if len(c.Items) == 0 {
				pipe.Del(ctx, k)
				return nil
			}
			pipe.Set(ctx, k, data, s.ttl)
			return nil
		})
		if err != nil {
			return err
		}
		result = c
		return nil
	}

	for i := 0; i < maxWatchAttempts; i++ {
		err := s.client.Watch(ctx, txf, k)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}
	return nil, fmt.Errorf("cart for user %d changed concurrently", userID)
}

func (s *Store) load(ctx context.Context, c getter, userID int64) (*model.Cart, error) {
	data, err := c.Get(ctx, key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return &model.Cart{UserID: userID, Items: []model.CartLine{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var cart model.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	if cart.Items == nil {
		cart.Items = []model.CartLine{}
	}
	return &cart, nil
}

func key(userID int64) string {
	return fmt.Sprintf("cart:%d", userID)
}

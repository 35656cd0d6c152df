package main

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	errDuplicateNumber = errors.New("whatsapp number already registered")
	errNotFound        = errors.New("business not found")
)

// Store keeps businesses and issued tokens in memory.
type Store struct {
	mu         sync.RWMutex
	nextID     int64
	businesses map[int64]*Business
	byNumber   map[string]int64
	tokens     map[string]AuthToken
	now        func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		nextID:     1,
		businesses: make(map[int64]*Business),
		byNumber:   make(map[string]int64),
		tokens:     make(map[string]AuthToken),
		now:        time.Now,
	}
}

// Seed registers the businesses listed in the config.
func (s *Store) Seed(seeds []SeedBusiness) error {
	for _, seed := range seeds {
		hash, err := hashPassword(seed.Password)
		if err != nil {
			return err
		}
		style := seed.ResponseStyle
		if style == "" {
			style = defaultResponseStyle
		}
		_, err = s.CreateBusiness(Business{
			Name:           seed.Name,
			WhatsAppNumber: validateWhatsAppNumber(seed.WhatsAppNumber),
			OwnerName:      seed.OwnerName,
			BusinessType:   seed.BusinessType,
			ResponseStyle:  style,
			PasswordHash:   hash,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// CreateBusiness stores b under a new ID. Numbers are unique.
func (s *Store) CreateBusiness(b Business) (Business, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byNumber[b.WhatsAppNumber]; exists {
		return Business{}, errDuplicateNumber
	}
	b.ID = s.nextID
	s.nextID++
	b.IsActive = true
	b.CreatedAt = s.now().UTC()
	stored := b
	s.businesses[b.ID] = &stored
	s.byNumber[b.WhatsAppNumber] = b.ID
	return b, nil
}

// FindByNumber looks a business up by its normalised WhatsApp number.
func (s *Store) FindByNumber(number string) (Business, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byNumber[number]
	if !ok {
		return Business{}, false
	}
	return *s.businesses[id], true
}

// Get returns the business with the given ID.
func (s *Store) Get(id int64) (Business, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.businesses[id]
	if !ok {
		return Business{}, errNotFound
	}
	return *b, nil
}

// List returns businesses ordered by ID.
func (s *Store) List(skip, limit int) []Business {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int64, 0, len(s.businesses))
	for id := range s.businesses {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if skip > len(ids) {
		skip = len(ids)
	}
	ids = ids[skip:]
	if limit >= 0 && limit < len(ids) {
		ids = ids[:limit]
	}
	out := make([]Business, 0, len(ids))
	for _, id := range ids {
		out = append(out, *s.businesses[id])
	}
	return out
}

// IssueToken creates an opaque access token for the business.
func (s *Store) IssueToken(businessID int64) AuthToken {
	token := AuthToken{
		Value:      uuid.NewString(),
		BusinessID: businessID,
		IssuedAt:   s.now().UTC(),
	}
	s.mu.Lock()
	s.tokens[token.Value] = token
	s.mu.Unlock()
	return token
}

// LookupToken returns the token record if the value was issued by this store.
func (s *Store) LookupToken(value string) (AuthToken, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	token, ok := s.tokens[value]
	return token, ok
}

func hashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}

func checkPassword(hash []byte, password string) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
}

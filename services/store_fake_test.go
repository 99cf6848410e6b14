package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"boqunits/models"
	"boqunits/repository"

	"github.com/stretchr/testify/require"
)

// memStore is an in-memory Store/Transactor. Transaction restores a snapshot
// when fn fails, mirroring a database rollback.
type memStore struct {
	units []models.Unit
	boqs  []memBOQ

	clock   time.Time
	saves   int
	locks   []string
	inTx    bool
	failOn  string
	racing  map[string]models.Unit
	created int
}

type memBOQ struct {
	ID        string
	CompanyID string
	Number    string
	Data      []byte
}

func newMemStore() *memStore {
	return &memStore{
		clock:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		racing: map[string]models.Unit{},
	}
}

func (m *memStore) addUnit(companyID, id, name string, abbreviation *string) models.Unit {
	m.clock = m.clock.Add(time.Minute)
	u := models.Unit{ID: id, CompanyID: companyID, Name: name, Abbreviation: abbreviation, CreatedAt: m.clock, UpdatedAt: m.clock}
	m.units = append(m.units, u)
	return u
}

func (m *memStore) addBOQ(companyID, id, number, data string) {
	m.boqs = append(m.boqs, memBOQ{ID: id, CompanyID: companyID, Number: number, Data: []byte(data)})
}

// raceUnit makes the next CreateUnit for name in companyID lose to a concurrent insert of u.
func (m *memStore) raceUnit(u models.Unit) {
	m.racing[u.CompanyID+"/"+u.Name] = u
}

func (m *memStore) Transaction(ctx context.Context, fn func(repository.Store) error) error {
	snapshot := m.snapshot()
	m.inTx = true
	err := fn(m)
	m.inTx = false
	if err != nil {
		m.restore(snapshot)
	}
	return err
}

type memSnapshot struct {
	units []models.Unit
	boqs  []memBOQ
}

func (m *memStore) snapshot() memSnapshot {
	s := memSnapshot{units: append([]models.Unit(nil), m.units...)}
	for _, b := range m.boqs {
		b.Data = append([]byte(nil), b.Data...)
		s.boqs = append(s.boqs, b)
	}
	return s
}

func (m *memStore) restore(s memSnapshot) {
	m.units = s.units
	m.boqs = s.boqs
}

func (m *memStore) ListCompanyIDs(_ context.Context, only []string) ([]string, error) {
	seen := map[string]bool{}
	allowed := map[string]bool{}
	for _, id := range only {
		allowed[id] = true
	}
	var ids []string
	for _, b := range m.boqs {
		if seen[b.CompanyID] || (len(only) > 0 && !allowed[b.CompanyID]) {
			continue
		}
		seen[b.CompanyID] = true
		ids = append(ids, b.CompanyID)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *memStore) LockCompany(_ context.Context, companyID string) error {
	if !m.inTx {
		return errors.New("lock outside transaction")
	}
	m.locks = append(m.locks, companyID)
	return nil
}

func (m *memStore) ListUnits(_ context.Context, companyID string) ([]models.Unit, error) {
	units := []models.Unit{}
	for _, u := range m.units {
		if u.CompanyID == companyID {
			units = append(units, u)
		}
	}
	return units, nil
}

func (m *memStore) CreateUnit(_ context.Context, unit *models.Unit) error {
	key := unit.CompanyID + "/" + unit.Name
	if winner, ok := m.racing[key]; ok {
		delete(m.racing, key)
		m.units = append(m.units, winner)
		return repository.ErrDuplicateUnit
	}
	for _, u := range m.units {
		if u.CompanyID == unit.CompanyID && u.Name == unit.Name {
			return repository.ErrDuplicateUnit
		}
	}
	m.clock = m.clock.Add(time.Minute)
	unit.CreatedAt, unit.UpdatedAt = m.clock, m.clock
	m.units = append(m.units, *unit)
	m.created++
	return nil
}

func (m *memStore) ListBOQs(_ context.Context, companyID string) ([]models.BOQ, error) {
	var rows []memBOQ
	for _, b := range m.boqs {
		if b.CompanyID == companyID {
			rows = append(rows, b)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Number < rows[j].Number })

	boqs := make([]models.BOQ, 0, len(rows))
	for _, b := range rows {
		boq := models.BOQ{ID: b.ID, CompanyID: b.CompanyID, Number: b.Number}
		if err := boq.Data.Scan(b.Data); err != nil {
			return nil, err
		}
		boqs = append(boqs, boq)
	}
	return boqs, nil
}

func (m *memStore) SaveBOQData(_ context.Context, boq *models.BOQ) error {
	if boq.ID == m.failOn {
		return fmt.Errorf("save boq %s: write conflict", boq.ID)
	}
	for i := range m.boqs {
		if m.boqs[i].ID == boq.ID && m.boqs[i].CompanyID == boq.CompanyID {
			data, err := json.Marshal(boq.Data)
			if err != nil {
				return err
			}
			m.boqs[i].Data = data
			m.saves++
			return nil
		}
	}
	return repository.ErrNotFound
}

// ForEachBOQ lets memStore double as the read-only BOQSource.
func (m *memStore) ForEachBOQ(ctx context.Context, companyIDs []string, fn func(models.BOQ) error) error {
	companies, err := m.ListCompanyIDs(ctx, companyIDs)
	if err != nil {
		return err
	}
	for _, companyID := range companies {
		boqs, err := m.ListBOQs(ctx, companyID)
		if err != nil {
			return err
		}
		for _, boq := range boqs {
			if err := fn(boq); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *memStore) rawData(t *testing.T, boqID string) []byte {
	t.Helper()
	for _, b := range m.boqs {
		if b.ID == boqID {
			return b.Data
		}
	}
	t.Fatalf("boq %s not found", boqID)
	return nil
}

// item decodes one stored item as a generic map.
func (m *memStore) item(t *testing.T, boqID string, section, index int) map[string]interface{} {
	t.Helper()
	var doc struct {
		Sections []struct {
			Items []map[string]interface{} `json:"items"`
		} `json:"sections"`
	}
	require.NoError(t, json.Unmarshal(m.rawData(t, boqID), &doc))
	require.Greater(t, len(doc.Sections), section)
	require.Greater(t, len(doc.Sections[section].Items), index)
	return doc.Sections[section].Items[index]
}

func (m *memStore) unitsOf(companyID string) []models.Unit {
	units, _ := m.ListUnits(context.Background(), companyID)
	return units
}

func (m *memStore) unitByName(t *testing.T, companyID, name string) models.Unit {
	t.Helper()
	for _, u := range m.unitsOf(companyID) {
		if u.Name == name {
			return u
		}
	}
	t.Fatalf("unit %q not found for company %s", name, companyID)
	return models.Unit{}
}

package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aryan0dhankhar/estatebooks/internal/domain"
	"github.com/aryan0dhankhar/estatebooks/internal/grid"
)

type recordingStore struct {
	calls []map[string]any
	row   grid.Row
	err   error
}

func (s *recordingStore) UpdateFields(_ context.Context, _, _, id string, values map[string]any) (grid.Row, error) {
	s.calls = append(s.calls, values)
	if s.err != nil {
		return nil, s.err
	}
	row := grid.Row{"id": id}
	for k, v := range values {
		row[k] = v
	}
	return row, nil
}

type recordingNotifier struct {
	tables []string
	fields [][]string
}

func (n *recordingNotifier) RowUpdated(_ context.Context, _, table, _ string, fields []string) {
	n.tables = append(n.tables, table)
	n.fields = append(n.fields, fields)
}

func TestDispatchUpdate_RejectsTablesOutsideAllowList(t *testing.T) {
	store := &recordingStore{}
	d := New(store, nil)

	_, err := d.DispatchUpdate(context.Background(), "t1", "users", "1", "email", "x@example.org")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "table", verr.Field)
	assert.Empty(t, store.calls)
}

func TestDispatchUpdate_PartnerSelectionIsOneAtomicWrite(t *testing.T) {
	store := &recordingStore{}
	notifier := &recordingNotifier{}
	d := New(store, nil, notifier)

	row, err := d.DispatchUpdate(context.Background(), "t1", "bank_transactions", "42",
		"partner_selection", `{"partnerId":"7","partnerType":"tenant"}`)
	require.NoError(t, err)

	require.Len(t, store.calls, 1)
	assert.Equal(t, map[string]any{"tenant_ref": "7", "business_partner_ref": nil}, store.calls[0])
	assert.Equal(t, "7", row["tenant_ref"])
	assert.Nil(t, row["business_partner_ref"])
	assert.Equal(t, `{"partnerId":"7","partnerType":"tenant"}`, row["partner_selection"])

	assert.Equal(t, []string{"bank_transactions"}, notifier.tables)
	assert.Equal(t, []string{"business_partner_ref", "tenant_ref"}, notifier.fields[0])
}

func TestPlan_PartnerSelectionShapes(t *testing.T) {
	values, err := Plan("bank_transactions", "partner_selection", map[string]any{
		"partnerId": "9", "partnerType": "business_partner",
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"business_partner_ref": "9", "tenant_ref": nil}, values)

	for _, bad := range []any{
		"not json",
		`{"partnerId":"","partnerType":"tenant"}`,
		`{"partnerId":"1","partnerType":"landlord"}`,
		nil,
		42,
	} {
		_, err := Plan("bank_transactions", "partner_selection", bad)
		var verr *ValidationError
		assert.ErrorAs(t, err, &verr, "%v", bad)
	}
}

func TestPlan_ForeignKeyFieldsClearSibling(t *testing.T) {
	values, err := Plan("bank_transactions", "tenant_ref", "7")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"tenant_ref": "7", "business_partner_ref": nil}, values)

	values, err = Plan("bank_transactions", "business_partner_ref", json.Number("3"))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"business_partner_ref": "3", "tenant_ref": nil}, values)

	values, err = Plan("bank_transactions", "tenant_ref", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"tenant_ref": nil}, values)
}

func TestPlan_SimpleFields(t *testing.T) {
	values, err := Plan("bank_transactions", "booking_category", "Rent")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"booking_category": "Rent"}, values)

	values, err = Plan("tenants", "lease_start_date", "01.03.2024")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"lease_start_date": "2024-03-01"}, values)

	values, err = Plan("business_partners", "is_active", "no")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"is_active": false}, values)

	values, err = Plan("booking_categories", "Schedule E - ID", "E-12")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"Schedule E - ID": "E-12"}, values)
}

func TestPlan_RejectsNonEditableAndMalformed(t *testing.T) {
	cases := []struct {
		table, field string
		value        any
	}{
		{"bank_transactions", "amount", "100"},
		{"bank_transactions", "id", "1"},
		{"tenants", "unknown_column", "x"},
		{"tenants", "lease_end_date", "someday"},
		{"business_partners", "is_active", "maybe"},
		{"tenants", "email", []any{"a", "b"}},
		{"tenants", "", "x"},
	}
	for _, tc := range cases {
		_, err := Plan(tc.table, tc.field, tc.value)
		var verr *ValidationError
		assert.ErrorAs(t, err, &verr, "%s.%s", tc.table, tc.field)
	}
}

func TestDispatchUpdate_StoreErrors(t *testing.T) {
	store := &recordingStore{err: domain.ErrNotFound}
	d := New(store, nil)
	_, err := d.DispatchUpdate(context.Background(), "t1", "tenants", "404", "email", "a@b.c")
	assert.ErrorIs(t, err, ErrRowNotFound)

	boom := errors.New("connection reset")
	store.err = boom
	_, err = d.DispatchUpdate(context.Background(), "t1", "tenants", "1", "email", "a@b.c")
	assert.ErrorIs(t, err, boom)
}

func TestDispatchUpdate_RequiresTenantAndID(t *testing.T) {
	d := New(&recordingStore{}, nil)
	var verr *ValidationError

	_, err := d.DispatchUpdate(context.Background(), "", "tenants", "1", "email", "a@b.c")
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "tenant", verr.Field)

	_, err = d.DispatchUpdate(context.Background(), "t1", "tenants", " ", "email", "a@b.c")
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "id", verr.Field)
}

func TestAllowedTables(t *testing.T) {
	assert.Equal(t, []string{
		"bank_transactions", "booking_categories", "business_partners",
		"properties", "tenant_rent_milestones", "tenants",
	}, AllowedTables())
}

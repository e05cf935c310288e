package catalog

import (
	"encoding/json"
	"slices"

	"github.com/aryan0dhankhar/estatebooks/internal/grid"
)

// OptionKind names a dropdown option list
type OptionKind string

const (
	OptionsTenants           OptionKind = "tenants"
	OptionsBusinessPartners  OptionKind = "business_partners"
	OptionsProperties        OptionKind = "properties"
	OptionsBookingCategories OptionKind = "booking_categories"
	OptionsCombinedPartners  OptionKind = "combined_partners"
)

// OptionKinds lists every option kind in a stable order
var OptionKinds = []OptionKind{
	OptionsTenants,
	OptionsBusinessPartners,
	OptionsProperties,
	OptionsBookingCategories,
	OptionsCombinedPartners,
}

// Valid reports whether k is a known option kind
func (k OptionKind) Valid() bool {
	return slices.Contains(OptionKinds, k)
}

// Partner types carried by the partner_selection payload
const (
	PartnerTenant          = "tenant"
	PartnerBusinessPartner = "business_partner"
)

// Field names with cross-field rules on bank_transactions
const (
	FieldPartnerSelection   = "partner_selection"
	FieldTenantRef          = "tenant_ref"
	FieldBusinessPartnerRef = "business_partner_ref"
	FieldPropertyRef        = "property_ref"
)

// Table describes one editable entity table
type Table struct {
	Name       string                  `json:"name"`
	Title      string                  `json:"title"`
	DisplayRPC string                  `json:"-"`
	Columns    []grid.ColumnDescriptor `json:"columns"`
	// Options maps dropdown columns to the option list that fills them.
	Options map[string]OptionKind `json:"options,omitempty"`
	// Derive adds computed fields to rows returned by the display RPC.
	Derive func(grid.Row) `json:"-"`
}

// Column returns the descriptor for key
func (t Table) Column(key string) (grid.ColumnDescriptor, bool) {
	return grid.FindColumn(t.Columns, key)
}

// Editable reports whether field may be edited inline
func (t Table) Editable(field string) bool {
	col, ok := t.Column(field)
	return ok && col.Editable
}

// EditableFields lists inline-editable fields in column order
func (t Table) EditableFields() []string {
	var out []string
	for _, c := range t.Columns {
		if c.Editable {
			out = append(out, c.Key)
		}
	}
	return out
}

// PartnerSelection is the composite value of the partner_selection field
type PartnerSelection struct {
	PartnerID   string `json:"partnerId"`
	PartnerType string `json:"partnerType"`
}

// Encode returns the canonical string form used as dropdown value
func (p PartnerSelection) Encode() string {
	b, _ := json.Marshal(p)
	return string(b)
}

func text(key, label string, editable bool) grid.ColumnDescriptor {
	return grid.ColumnDescriptor{Key: key, Label: label, Kind: grid.KindText, Editable: editable, Sortable: true, Filterable: true}
}

func money(key, label string) grid.ColumnDescriptor {
	return grid.ColumnDescriptor{Key: key, Label: label, Kind: grid.KindCurrency, Sortable: true, Currency: grid.DefaultCurrency}
}

func date(key, label string, editable bool) grid.ColumnDescriptor {
	return grid.ColumnDescriptor{Key: key, Label: label, Kind: grid.KindDate, Editable: editable, Sortable: true, Filterable: true}
}

func dropdown(key, label string) grid.ColumnDescriptor {
	return grid.ColumnDescriptor{Key: key, Label: label, Kind: grid.KindDropdown, Editable: true, Sortable: true, Filterable: true}
}

var idColumn = grid.ColumnDescriptor{Key: grid.IDField, Label: "ID", Kind: grid.KindText, Hidden: true}

var tables = []Table{
	{
		Name:       "bank_transactions",
		Title:      "Bank Transactions",
		DisplayRPC: "get_bank_transactions_display",
		Columns: []grid.ColumnDescriptor{
			idColumn,
			date("date", "Date", false),
			text("description", "Description", true),
			money("amount", "Amount"),
			text("payer", "Payer", true),
			dropdown("booking_category", "Category"),
			text("partner_name", "Current Partner", false),
			dropdown(FieldPartnerSelection, "Update Partner"),
			dropdown(FieldPropertyRef, "Property"),
			text("transaction_type", "Type", false),
		},
		Options: map[string]OptionKind{
			"booking_category":    OptionsBookingCategories,
			FieldPartnerSelection: OptionsCombinedPartners,
			FieldPropertyRef:      OptionsProperties,
		},
		Derive: derivePartnerSelection,
	},
	{
		Name:       "tenants",
		Title:      "Renters",
		DisplayRPC: "get_renters_display",
		Columns: []grid.ColumnDescriptor{
			idColumn,
			text("full_name", "Name", true),
			text("computed_status", "Status", false),
			text("email", "Email", true),
			text("phone", "Phone", true),
			money("cold_rent", "Cold Rent"),
			money("total_rent", "Total Rent"),
			date("lease_start_date", "Lease Start", true),
			date("lease_end_date", "Lease End", true),
		},
	},
	{
		Name:       "business_partners",
		Title:      "Business Partners",
		DisplayRPC: "get_business_partners_display",
		Columns: []grid.ColumnDescriptor{
			idColumn,
			text("full_name", "Company Name", true),
			text("business_type", "Business Type", true),
			text("status_display", "Status", false),
			text("contact_email", "Email", true),
			text("contact_phone", "Phone", true),
			{Key: "is_active", Label: "Active", Kind: grid.KindBoolean, Editable: true, Sortable: true, Filterable: true},
			text("comment", "Comment", true),
		},
	},
	{
		Name:       "booking_categories",
		Title:      "Booking Categories",
		DisplayRPC: "get_booking_categories_display",
		Columns: []grid.ColumnDescriptor{
			idColumn,
			text("Name", "Name", true),
			text("Business - Main Category", "Main Category", true),
			text("Business - Sub Category", "Sub Category", true),
			text("Schedule E - ID", "Schedule E ID", true),
			text("Schedule C - ID", "Schedule C ID", true),
			text("Comment", "Comment", true),
		},
	},
	{
		Name:       "properties",
		Title:      "Properties",
		DisplayRPC: "get_properties_display",
		Columns: []grid.ColumnDescriptor{
			idColumn,
			text("name", "Name", true),
			text("street", "Street", true),
			text("city", "City", true),
			text("units", "Units", false),
			money("purchase_price", "Purchase Price"),
			{Key: "document_url", Label: "Documents", Kind: grid.KindLink, LinkTitleField: "document_title"},
		},
	},
	{
		Name:       "tenant_rent_milestones",
		Title:      "Rent Payment Schedule",
		DisplayRPC: "get_renters_payment_schedule_display",
		Columns: []grid.ColumnDescriptor{
			idColumn,
			text("tenant_name", "Renter Name", false),
			money("cold_rent", "Cold Rent"),
			money("heating_costs", "Heating"),
			money("additional_costs", "Additional"),
			money("parking_costs", "Parking"),
			money("total_monthly_cost", "Total Monthly"),
			date("effective_from", "Effective From", true),
			date("legal_notice_date", "Notice Date", true),
			text("schedule_status", "Status", false),
			text("months_active", "Months Active", false),
			text("notes", "Notes", true),
		},
	},
}

// All returns every table in display order
func All() []Table {
	out := make([]Table, len(tables))
	for i, t := range tables {
		out[i] = t.clone()
	}
	return out
}

// Lookup returns the table called name
func Lookup(name string) (Table, bool) {
	for _, t := range tables {
		if t.Name == name {
			return t.clone(), true
		}
	}
	return Table{}, false
}

// Names lists the table names
func Names() []string {
	out := make([]string, 0, len(tables))
	for _, t := range tables {
		out = append(out, t.Name)
	}
	return out
}

func (t Table) clone() Table {
	t.Columns = slices.Clone(t.Columns)
	return t
}

// derivePartnerSelection exposes the current partner as the composite value so
// a refresh can confirm partner_selection edits.
func derivePartnerSelection(r grid.Row) {
	if _, ok := r[FieldPartnerSelection]; ok {
		return
	}
	if id := grid.Stringify(r[FieldTenantRef]); id != "" {
		r[FieldPartnerSelection] = PartnerSelection{PartnerID: id, PartnerType: PartnerTenant}.Encode()
		return
	}
	if id := grid.Stringify(r[FieldBusinessPartnerRef]); id != "" {
		r[FieldPartnerSelection] = PartnerSelection{PartnerID: id, PartnerType: PartnerBusinessPartner}.Encode()
		return
	}
	r[FieldPartnerSelection] = nil
}

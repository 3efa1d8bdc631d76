package kinds

import (
	"sort"

	"github.com/shopspring/decimal"
)

func text(name string) Field { return Field{Name: name, Type: Text, Required: true} }
func ref(name string) Field { return Field{Name: name, Type: Ref, Required: true} }
func money(name string) Field { return Field{Name: name, Type: Decimal, Required: true} }
func optText(name string) Field { return Field{Name: name, Type: Text, Default: ""} }
func optRef(name string) Field { return Field{Name: name, Type: Ref} }
func optTimestamp(name string) Field { return Field{Name: name, Type: Timestamp} }

func sectors(plural, singular string) Sectors {
	return Sectors{
		List:    "list" + plural,
		Get:     "get" + singular,
		Create:  "add" + singular,
		Update:  "update" + singular,
		Delete:  "delete" + singular,
		History: "list" + singular + "History",
	}
}

var Clients = &Kind{
	Name:         "clients",
	Table:        "clients",
	HistoryTable: "clients_history",
	HistoryFK:    "client_id",
	Fields: []Field{
		text("business_name"),
		text("tax_id"),
		text("email"),
		optRef("brand_file_id"),
		optText("phone"),
		optText("address"),
	},
	Sectors: sectors("Clients", "Client"),
}

var Folders = &Kind{
	Name:         "folders",
	Table:        "folders",
	HistoryTable: "folders_history",
	HistoryFK:    "folder_id",
	Fields: []Field{
		ref("client_id"),
		text("name"),
		optRef("parent_id"),
		optRef("folder_image_file_id"),
	},
	Filters: []string{"parent_id", "client_id"},
	Sectors: sectors("Folders", "Folder"),
}

var Jobs = &Kind{
	Name:         "jobs",
	Table:        "jobs",
	HistoryTable: "jobs_history",
	HistoryFK:    "job_id",
	Fields: []Field{
		ref("client_id"),
		optRef("product_service_id"),
		optRef("folder_id"),
		text("type_of_work"),
		text("description"),
		text("status"),
		optTimestamp("start_datetime"),
		optTimestamp("end_datetime"),
		{Name: "multiplicative_value", Type: Decimal, Default: decimal.RequireFromString("1.00")},
		optText("attached_files"),
	},
	Sectors: sectors("Jobs", "Job"),
}

var Sales = &Kind{
	Name:         "sales",
	Table:        "sales",
	HistoryTable: "sales_history",
	HistoryFK:    "sale_id",
	Fields: []Field{
		ref("client_id"),
		ref("product_service_id"),
		optRef("folder_id"),
		text("invoice_number"),
		money("amount"),
		optTimestamp("sale_date"),
		optText("attached_files"),
	},
	ListByOwner: true,
	Sectors:     sectors("Sales", "Sale"),
}

var Appointments = &Kind{
	Name:         "appointments",
	Table:        "appointments",
	HistoryTable: "appointments_history",
	HistoryFK:    "appointment_id",
	Fields: []Field{
		ref("client_id"),
		optRef("job_id"),
		{Name: "appointment_date", Type: Date, Required: true},
		{Name: "appointment_time", Type: Clock, Required: true},
		text("location"),
		optRef("site_image_file_id"),
		optText("attached_files"),
	},
	ListByOwner: true,
	Sectors:     sectors("Appointments", "Appointment"),
}

var Expenses = &Kind{
	Name:         "expenses",
	Table:        "expenses",
	HistoryTable: "expenses_history",
	HistoryFK:    "expense_id",
	Fields: []Field{
		text("description"),
		text("category"),
		money("amount"),
		text("invoice_number"),
		optRef("folder_id"),
		optText("attached_files"),
		optTimestamp("expense_date"),
	},
	Ownership:   OwnershipStrict,
	ListByOwner: true,
	Sectors:     sectors("Expenses", "Expense"),
}

var CashBoxes = &Kind{
	Name:         "cash_boxes",
	Table:        "cash_boxes",
	HistoryTable: "cash_boxes_history",
	HistoryFK:    "cash_box_id",
	Fields: []Field{
		text("name"),
		optRef("image_file_id"),
	},
	Ownership: OwnershipStrict,
	Sectors:   sectors("CashBoxes", "CashBox"),
}

var AccountingClosings = &Kind{
	Name:         "accounting_closings",
	Table:        "accounting_closings",
	HistoryTable: "accounting_closings_history",
	HistoryFK:    "closing_id",
	Fields: []Field{
		ref("cash_box_id"),
		{Name: "closing_date", Type: Timestamp, Required: true},
		money("final_balance"),
		money("total_income"),
		money("total_expenses"),
		optText("comments"),
	},
	Ownership:   OwnershipStrict,
	ListByOwner: true,
	Sectors:     sectors("Closings", "Closing"),
}

var ProductsServices = &Kind{
	Name:         "products_services",
	Table:        "products_services",
	HistoryTable: "products_services_history",
	HistoryFK:    "ps_id",
	Fields: []Field{
		optText("description"),
		optText("category"),
		{Name: "price", Type: Decimal, Default: decimal.Zero},
		{Name: "cost", Type: Decimal, Default: decimal.Zero},
		optText("difficulty"),
		{Name: "item_type", Type: Enum, Required: true, Options: []string{"product", "service"}},
		optRef("product_image_file_id"),
		{Name: "stock", Type: Int, Default: int64(0)},
	},
	Ownership: OwnershipStrict,
	Sectors:   sectors("ProductsServices", "ProductService"),
}

var UserProfiles = &Kind{
	Name:         "user_profile",
	Table:        "user_profile",
	HistoryTable: "user_profile_history",
	HistoryFK:    "profile_id",
	Fields: []Field{
		text("full_name"),
		optText("phone"),
		optText("address"),
		optText("cuit"),
		optRef("profile_file_id"),
	},
	OnePerOwner: true,
	Sectors:     sectors("UserProfiles", "UserProfile"),
}

var UserConfigurations = &Kind{
	Name:         "user_configurations",
	Table:        "user_configurations",
	HistoryTable: "user_configurations_history",
	HistoryFK:    "config_id",
	Fields: []Field{
		text("role"),
		text("view_type"),
		text("theme"),
		text("font_size"),
	},
	OnePerOwner: true,
	Sectors:     sectors("UserConfigurations", "UserConfigurations"),
}

var Statuses = &Kind{
	Name:  "statuses",
	Table: "statuses",
	Fields: []Field{
		text("label"),
		text("value"),
		text("background_color"),
		{Name: "order_index", Type: Int, Required: true},
	},
	Ownership: OwnershipGlobal,
	OrderBy:   "order_index",
	Sectors: Sectors{
		List:    "listStatuses",
		Get:     "getStatus",
		Create:  "addStatus",
		Update:  "updateStatus",
		Delete:  "deleteStatus",
		Reorder: "reorderStatuses",
	},
}

var registry = map[string]*Kind{}

func init() {
	for _, k := range []*Kind{
		Clients, Folders, Jobs, Sales, Appointments, Expenses, CashBoxes,
		AccountingClosings, ProductsServices, UserProfiles, UserConfigurations, Statuses,
	} {
		registry[k.Name] = k
	}
}

// Lookup finds a kind by its route name.
func Lookup(name string) (*Kind, bool) {
	k, ok := registry[name]
	return k, ok
}

// All returns every registered kind sorted by name.
func All() []*Kind {
	out := make([]*Kind, 0, len(registry))
	for _, k := range registry {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// DefaultProfile and DefaultConfiguration are stored for every new account.
func DefaultProfile(username string) map[string]any {
	return map[string]any{"full_name": username}
}

func DefaultConfiguration() map[string]any {
	return map[string]any{
		"role":      "usuario",
		"view_type": "default",
		"theme":     "light",
		"font_size": "medium",
	}
}

package bookings

import (
	"github.com/robertarktes/hotel-booking-web/internal/domain"
)

type Column string

const (
	ColumnIndex       Column = "index"
	ColumnRoomType    Column = "roomType"
	ColumnCheckIn     Column = "checkIn"
	ColumnCheckOut    Column = "checkOut"
	ColumnGuestName   Column = "guestFullName"
	ColumnGuestEmail  Column = "guestEmail"
	ColumnAdults      Column = "numOfAdults"
	ColumnChildren    Column = "numOfChildren"
	ColumnTotalGuests Column = "totalNumOfGuest"
	ColumnCode        Column = "bookingCode"
	ColumnStatus      Column = "status"
	ColumnAction      Column = "action"
)

type Action string

const (
	ActionView   Action = "view"
	ActionCancel Action = "cancel"
)

// TableConfig describes one rendering of a booking list.
type TableConfig struct {
	Columns   []Column
	PageSize  int
	Action    Action
	EmptyText string
}

const DefaultPageSize = 5

// HistoryTable is the guest-facing booking history.
func HistoryTable() TableConfig {
	return TableConfig{
		Columns:   []Column{ColumnIndex, ColumnRoomType, ColumnCheckIn, ColumnCheckOut, ColumnCode, ColumnStatus, ColumnAction},
		PageSize:  DefaultPageSize,
		Action:    ActionView,
		EmptyText: "No Booking Found",
	}
}

// ManageTable is the staff view over all bookings, with guest details and a cancel action.
func ManageTable() TableConfig {
	return TableConfig{
		Columns: []Column{
			ColumnRoomType, ColumnCheckIn, ColumnCheckOut, ColumnGuestName, ColumnGuestEmail,
			ColumnAdults, ColumnChildren, ColumnTotalGuests, ColumnCode, ColumnStatus, ColumnAction,
		},
		PageSize:  DefaultPageSize,
		Action:    ActionCancel,
		EmptyText: "No Booking Found",
	}
}

func (c TableConfig) Has(col Column) bool {
	for _, have := range c.Columns {
		if have == col {
			return true
		}
	}
	return false
}

// Row is one rendered booking. Index is the 1-based position in the projection.
type Row struct {
	Index       int           `json:"index,omitempty"`
	ID          int64         `json:"id"`
	RoomType    string        `json:"roomType"`
	CheckIn     string        `json:"checkIn"`
	CheckOut    string        `json:"checkOut"`
	GuestName   string        `json:"guestFullName,omitempty"`
	GuestEmail  string        `json:"guestEmail,omitempty"`
	Adults      int           `json:"numOfAdults,omitempty"`
	Children    int           `json:"numOfChildren,omitempty"`
	TotalGuests int           `json:"totalNumOfGuest,omitempty"`
	Code        string        `json:"bookingCode"`
	Status      domain.Status `json:"status"`
	StatusColor string        `json:"statusColor"`
	Action      Action        `json:"action,omitempty"`
}

type Page struct {
	Columns   []Column `json:"columns"`
	Rows      []Row    `json:"rows"`
	Page      int      `json:"page"`
	PageSize  int      `json:"pageSize"`
	Total     int      `json:"total"`
	Pages     int      `json:"pages"`
	EmptyText string   `json:"emptyText,omitempty"`
}

// Render lays out one page of an already projected list. Pages are 1-based; a page past the end
// yields no rows.
func Render(list []domain.Booking, cfg TableConfig, page int) Page {
	size := cfg.PageSize
	if size < 1 {
		size = DefaultPageSize
	}
	if page < 1 {
		page = 1
	}
	p := Page{
		Columns:  cfg.Columns,
		Rows:     []Row{},
		Page:     page,
		PageSize: size,
		Total:    len(list),
		Pages:    (len(list) + size - 1) / size,
	}
	if len(list) == 0 {
		p.EmptyText = cfg.EmptyText
		return p
	}
	if page > p.Pages {
		return p
	}
	for i := (page - 1) * size; i < len(list) && i < page*size; i++ {
		p.Rows = append(p.Rows, renderRow(list[i], i+1, cfg))
	}
	return p
}

func renderRow(b domain.Booking, index int, cfg TableConfig) Row {
	r := Row{
		ID:          b.ID,
		RoomType:    b.RoomType(),
		CheckIn:     b.CheckIn.String(),
		CheckOut:    b.CheckOut.String(),
		Code:        b.BookingCode,
		Status:      b.Status,
		StatusColor: b.Status.Color(),
	}
	if cfg.Has(ColumnIndex) {
		r.Index = index
	}
	if cfg.Has(ColumnGuestName) {
		r.GuestName = b.GuestFullName
	}
	if cfg.Has(ColumnGuestEmail) {
		r.GuestEmail = b.GuestEmail
	}
	if cfg.Has(ColumnAdults) {
		r.Adults = b.NumOfAdults
	}
	if cfg.Has(ColumnChildren) {
		r.Children = b.NumOfChildren
	}
	if cfg.Has(ColumnTotalGuests) {
		r.TotalGuests = b.TotalNumOfGuest
	}
	if cfg.Has(ColumnAction) {
		r.Action = cfg.Action
		if cfg.Action == ActionCancel && !b.Status.Cancelable() {
			r.Action = ""
		}
	}
	return r
}

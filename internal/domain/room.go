package domain

type Room struct {
	ID        int64   `json:"id"`
	RoomType  string  `json:"roomType"`
	RoomPrice float64 `json:"roomPrice"`
	IsBooked  bool    `json:"isBooked"`
	// Image is the base64 encoded photo as served by the API.
	Image string `json:"image,omitempty"`
}

// RoomRequest is the metadata part of a new room submission.
type RoomRequest struct {
	RoomType  string  `json:"roomType"`
	RoomPrice float64 `json:"roomPrice"`
}

// RoomUpdate carries only the fields to change; nil fields are omitted from the payload,
// which the API reads as "leave unchanged".
type RoomUpdate struct {
	RoomType  *string  `json:"roomType,omitempty"`
	RoomPrice *float64 `json:"roomPrice,omitempty"`
}

type ExtraService struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Description string  `json:"description,omitempty"`
}

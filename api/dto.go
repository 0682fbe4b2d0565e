/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

AMOUNTS AND DATES:
  Amounts travel as JSON numbers and are converted to 2dp decimals at the
  boundary. Dates travel as YYYY-MM-DD or YYYY-MM-DD HH:MM:SS in the
  business timezone.

VALIDATION:
  Validation is done in handlers and services, not in DTOs. DTOs are pure
  data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - server.go: Route wiring
*/
package api

// =============================================================================
// COMMON
// =============================================================================

// ErrorResponse is the JSON shape of every error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// PaginationDTO accompanies paginated listings.
type PaginationDTO struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// =============================================================================
// STATIONS / PUMPS / STORE
// =============================================================================

type StationDTO struct {
	ID               int64    `json:"id"`
	Name             string   `json:"name"`
	Address          string   `json:"address,omitempty"`
	Phone            string   `json:"phone,omitempty"`
	Email            string   `json:"email,omitempty"`
	CurrentFuelPrice *float64 `json:"currentFuelPrice"`
	CreatedAt        string   `json:"createdAt,omitempty"`
	UpdatedAt        string   `json:"updatedAt,omitempty"`
}

type StationRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
}

type PumpDTO struct {
	ID           int64  `json:"id"`
	StationID    int64  `json:"stationId"`
	SerialNumber string `json:"serialNumber"`
	Description  string `json:"description"`
	CreatedAt    string `json:"createdAt,omitempty"`
}

type PumpRequest struct {
	SerialNumber string `json:"serialNumber"`
	Description  string `json:"description"`
}

type FuelProductDTO struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type StoreItemDTO struct {
	ID        int64   `json:"id"`
	StationID int64   `json:"stationId"`
	ProductID int64   `json:"productId"`
	Qty       float64 `json:"qty"`
	UpdatedAt string  `json:"updatedAt,omitempty"`
}

type UpdateStoreRequest struct {
	Items []struct {
		ProductID int64   `json:"productId"`
		Qty       float64 `json:"qty"`
	} `json:"items"`
}

type StationStockDTO struct {
	StationID  int64          `json:"stationId"`
	TotalStock float64        `json:"totalStock"`
	Products   []StoreItemDTO `json:"products"`
}

// =============================================================================
// PRICE WINDOWS
// =============================================================================

type PriceWindowDTO struct {
	ID        int64   `json:"id"`
	StationID int64   `json:"stationId"`
	Price     float64 `json:"price"`
	StartDate string  `json:"startDate"`
	EndDate   *string `json:"endDate"`
	CreatedAt string  `json:"createdAt,omitempty"`
}

type PriceWindowRequest struct {
	StationID int64   `json:"stationId"`
	Price     float64 `json:"price"`
	StartDate string  `json:"startDate"`
	EndDate   *string `json:"endDate"`
}

type CurrentPriceDTO struct {
	StationID    int64    `json:"stationId"`
	CurrentPrice *float64 `json:"currentPrice"`
}

// =============================================================================
// CLIENTS / LEDGERS
// =============================================================================

type ClientDTO struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Address   string `json:"address,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
}

type ClientRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// LedgerEntryDTO is one ledger row in any domain. Stock listings read
// quantityIn/quantityOut; money listings read amountIn/amountOut - the
// handler sets the pair that matches the domain.
type LedgerEntryDTO struct {
	ID        string  `json:"id"`
	AmountIn  float64 `json:"amountIn"`
	AmountOut float64 `json:"amountOut"`
	Balance   float64 `json:"balance"`
	Date      string  `json:"date"`
	Reference string  `json:"reference,omitempty"`
	CreatedAt string  `json:"createdAt,omitempty"`
}

type LedgerPageDTO struct {
	Entries        []LedgerEntryDTO `json:"entries"`
	CurrentBalance float64          `json:"currentBalance"`
	Pagination     PaginationDTO    `json:"pagination"`
}

type ClientLedgerEntryRequest struct {
	AmountIn  float64 `json:"amountIn"`
	AmountOut float64 `json:"amountOut"`
	Reference string  `json:"reference"`
	Date      string  `json:"date"`
}

type BalanceDTO struct {
	Balance float64 `json:"balance"`
}

// =============================================================================
// SALES
// =============================================================================

type SaleRequest struct {
	StationID  int64   `json:"stationId"`
	VehicleID  int64   `json:"vehicleId"`
	ClientID   int64   `json:"clientId"`
	Quantity   float64 `json:"quantity"`
	UnitPrice  float64 `json:"unitPrice"`
	TotalPrice float64 `json:"totalPrice"`
	SaleDate   string  `json:"saleDate"`
}

type SaleDTO struct {
	ID             int64   `json:"id"`
	StationID      int64   `json:"stationId"`
	VehicleID      int64   `json:"vehicleId"`
	ClientID       int64   `json:"clientId"`
	Quantity       float64 `json:"quantity"`
	UnitPrice      float64 `json:"unitPrice"`
	TotalPrice     float64 `json:"totalPrice"`
	SaleDate       string  `json:"saleDate"`
	CreatedAt      string  `json:"createdAt,omitempty"`
	StationName    string  `json:"stationName,omitempty"`
	StationAddress string  `json:"stationAddress,omitempty"`
	VehicleName    string  `json:"vehicleName,omitempty"`
	VehicleAddress string  `json:"vehicleAddress,omitempty"`
	ClientName     string  `json:"clientName,omitempty"`
}

type SalesPageDTO struct {
	Sales      []SaleDTO     `json:"sales"`
	Pagination PaginationDTO `json:"pagination"`
}

type AddStockRequest struct {
	Quantity    float64 `json:"quantity"`
	Date        string  `json:"date"`
	Description string  `json:"description"`
}

type SaleSummaryDTO struct {
	Date          string  `json:"date"`
	TotalSales    int     `json:"totalSales"`
	TotalRevenue  float64 `json:"totalRevenue"`
	TotalQuantity float64 `json:"totalQuantity"`
}

type MonthlySalesDTO struct {
	TotalSales int     `json:"totalSales"`
	TotalValue float64 `json:"totalValue"`
}

type DailyTrendDTO struct {
	Date       string  `json:"date"`
	TotalSales int     `json:"totalSales"`
	TotalValue float64 `json:"totalValue"`
}

// =============================================================================
// STOCK TRANSFERS / BARRACKS
// =============================================================================

type TransferRequest struct {
	FromBarracksID int64   `json:"fromBarracksId"`
	ToBarracksID   int64   `json:"toBarracksId"`
	ItemID         int64   `json:"itemId"`
	Quantity       float64 `json:"quantity"`
	Notes          string  `json:"notes"`
	RequestedBy    string  `json:"requestedBy"`
	TransferDate   string  `json:"transferDate"`
}

type TransferDTO struct {
	ID             int64   `json:"id"`
	FromBarracksID int64   `json:"fromBarracksId"`
	ToBarracksID   int64   `json:"toBarracksId"`
	ItemID         int64   `json:"itemId"`
	Quantity       float64 `json:"quantity"`
	Status         string  `json:"status"`
	Notes          string  `json:"notes,omitempty"`
	RequestedBy    string  `json:"requestedBy,omitempty"`
	DecidedBy      string  `json:"decidedBy,omitempty"`
	TransferDate   string  `json:"transferDate"`
	CreatedAt      string  `json:"createdAt,omitempty"`
	DecidedAt      *string `json:"decidedAt,omitempty"`
}

type DecideTransferRequest struct {
	DecidedBy string `json:"decidedBy"`
}

type BarracksDTO struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location,omitempty"`
}

type ItemDTO struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Unit string `json:"unit,omitempty"`
}

type BarrackStockDTO struct {
	BarracksID   int64   `json:"barracksId"`
	BarracksName string  `json:"barracksName"`
	ItemID       int64   `json:"itemId"`
	ItemName     string  `json:"itemName"`
	Qty          float64 `json:"qty"`
	UpdatedAt    string  `json:"updatedAt,omitempty"`
}

// =============================================================================
// STAFF LEAVES
// =============================================================================

type LeaveDTO struct {
	ID        int64  `json:"id"`
	StaffID   int64  `json:"staffId"`
	StaffName string `json:"staffName"`
	LeaveType string `json:"leaveType"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Reason    string `json:"reason"`
	Status    string `json:"status"`
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

type LeaveRequest struct {
	StaffID   int64  `json:"staffId"`
	StaffName string `json:"staffName"`
	LeaveType string `json:"leaveType"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Reason    string `json:"reason"`
}

// =============================================================================
// ATTENDANCE
// =============================================================================

type AttendanceDTO struct {
	ID                int64    `json:"id"`
	UserID            int64    `json:"userId"`
	UserName          string   `json:"userName"`
	StationID         int64    `json:"stationId"`
	StationName       string   `json:"stationName"`
	CheckInLatitude   float64  `json:"checkInLatitude"`
	CheckInLongitude  float64  `json:"checkInLongitude"`
	CheckOutLatitude  *float64 `json:"checkOutLatitude,omitempty"`
	CheckOutLongitude *float64 `json:"checkOutLongitude,omitempty"`
	Address           string   `json:"address,omitempty"`
	QRData            string   `json:"qrData,omitempty"`
	Status            int      `json:"status"`
	TimeIn            string   `json:"timeIn"`
	TimeOut           *string  `json:"timeOut,omitempty"`
}

type CheckInRequest struct {
	UserID           int64   `json:"userId"`
	UserName         string  `json:"userName"`
	StationID        int64   `json:"stationId"`
	StationName      string  `json:"stationName"`
	CheckInLatitude  float64 `json:"checkInLatitude"`
	CheckInLongitude float64 `json:"checkInLongitude"`
	Address          string  `json:"address"`
	QRData           string  `json:"qrData"`
}

type CheckOutRequest struct {
	CheckOutLatitude  *float64 `json:"checkOutLatitude"`
	CheckOutLongitude *float64 `json:"checkOutLongitude"`
}

type AttendanceStatsDTO struct {
	Total      int `json:"total"`
	CheckedIn  int `json:"checkedIn"`
	CheckedOut int `json:"checkedOut"`
}

// =============================================================================
// VEHICLE CONVERSIONS / BRANCHES
// =============================================================================

type ConversionDTO struct {
	ID             int64   `json:"id"`
	VehiclePlate   string  `json:"vehiclePlate"`
	VehicleType    string  `json:"vehicleType"`
	ConversionType string  `json:"conversionType"`
	AmountCharged  float64 `json:"amountCharged"`
	ServiceDate    string  `json:"serviceDate"`
	Comment        string  `json:"comment,omitempty"`
	CreatedAt      string  `json:"createdAt,omitempty"`
}

type ConversionRequest struct {
	VehiclePlate   string  `json:"vehiclePlate"`
	VehicleType    string  `json:"vehicleType"`
	ConversionType string  `json:"conversionType"`
	AmountCharged  float64 `json:"amountCharged"`
	ServiceDate    string  `json:"serviceDate"`
	Comment        string  `json:"comment"`
}

type ConversionStatsDTO struct {
	TotalConversions int                      `json:"totalConversions"`
	TotalAmount      float64                  `json:"totalAmount"`
	ByType           []ConversionTypeStatsDTO `json:"byType"`
}

type ConversionTypeStatsDTO struct {
	ConversionType string  `json:"conversionType"`
	Count          int     `json:"count"`
	TotalAmount    float64 `json:"totalAmount"`
}

type BranchDTO struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Address   string `json:"address,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
}

type BranchRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

type LoadScenarioRequest struct {
	Scenario string `json:"scenario"`
}

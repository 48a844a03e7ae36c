package signal

// RejectReason 过滤链的典型拒绝原因。高频、预期内、不升级为错误，只记录。
type RejectReason string

const (
	RejectEdgeTooSmall          RejectReason = "EDGE_TOO_SMALL"
	RejectEdgeTooLarge          RejectReason = "EDGE_TOO_LARGE" // 疑似脏数据保护，不是"好得不像话"
	RejectTooSoonAfterOpen      RejectReason = "TOO_SOON_AFTER_OPEN"
	RejectTooCloseToExpiry      RejectReason = "TOO_CLOSE_TO_EXPIRY"
	RejectTooFarFromExpiry      RejectReason = "TOO_FAR_FROM_EXPIRY"
	RejectInsufficientLiquidity RejectReason = "INSUFFICIENT_LIQUIDITY"
	RejectVolatilityOutOfRange  RejectReason = "VOLATILITY_OUT_OF_RANGE"
	RejectMaxPositionsReached   RejectReason = "MAX_POSITIONS_REACHED"
	// RejectNoEdge 策略没有产生候选（例如调整后优势<=0、动量未确认）。
	RejectNoEdge RejectReason = "NO_EDGE"
)

package lobby

// CreateGameRequest 创建对局，uid 即创建者（不做身份校验）
type CreateGameRequest struct {
	UID string `json:"uid" binding:"required"`
}

// CreateGameResponse 返回新生成的 session id
type CreateGameResponse struct {
	GameID string `json:"gameId"`
}

// GameListEntry 登记表中的一条
type GameListEntry struct {
	GameID    string `json:"gameId"`
	Owner     string `json:"owner"`
	CreatedAt int64  `json:"createdAt"` // unix millis
}

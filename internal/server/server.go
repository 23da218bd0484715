package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/habitatworks/habitat/internal/runtime"
	"github.com/habitatworks/habitat/internal/world"
)

// Server exposes the city runtime over HTTP: pulse execution, chat append,
// log reads, cross-city transfers, and admin state reads.
type Server struct {
	City *runtime.City
	Log  *zap.SugaredLogger
}

func NewServer(city *runtime.City, log *zap.SugaredLogger) *Server {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Server{City: city, Log: log}
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.Default()

	r.POST("/personas/:id/pulse", s.RunPulse)
	r.GET("/personas/:id/state", s.PersonaState)
	r.POST("/buildings/:id/messages", s.AppendMessage)
	r.GET("/buildings/:id/messages", s.ReadMessages)
	r.POST("/dispatch", s.ForwardedPulse)
	r.POST("/transfers", s.AcceptTransfer)

	return r
}

type PulseRequest struct {
	Occupants  []string `json:"occupants"`
	UserOnline bool     `json:"user_online"`
}

func (s *Server) RunPulse(c *gin.Context) {
	var req PulseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	replies, err := s.City.RunPulse(c.Request.Context(), c.Param("id"), req.Occupants, req.UserOnline)
	if err != nil {
		s.Log.Warnw("pulse request failed", "persona", c.Param("id"), "err", err)
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if replies == nil {
		replies = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"replies": replies})
}

type ForwardedPulseRequest struct {
	PersonaID  string   `json:"persona_id"`
	Occupants  []string `json:"occupants"`
	UserOnline bool     `json:"user_online"`
}

// ForwardedPulse is the receiving side of a remote proxy: the persona's
// host city forwards a pulse here, to the runtime that owns its state.
func (s *Server) ForwardedPulse(c *gin.Context) {
	var req ForwardedPulseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	replies, err := s.City.RunForwardedPulse(c.Request.Context(), req.PersonaID, req.Occupants, req.UserOnline)
	if err != nil {
		s.Log.Warnw("forwarded pulse failed", "persona", req.PersonaID, "err", err)
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if replies == nil {
		replies = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"replies": replies})
}

type TransferRequest struct {
	PersonaID  string `json:"persona_id"`
	HomeURL    string `json:"home_url"`
	BuildingID string `json:"building_id"`
}

// AcceptTransfer hosts an arriving persona as a remote proxy. Placement is
// capacity-gated like any other entry.
func (s *Server) AcceptTransfer(c *gin.Context) {
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	building := req.BuildingID
	if building == "" {
		if all := s.City.Buildings().Buildings(); len(all) > 0 {
			building = all[0].ID
		}
	}

	if err := s.City.AddRemotePersona(req.PersonaID, req.HomeURL, building); err != nil {
		s.Log.Warnw("transfer refused", "persona", req.PersonaID, "err", err)
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "hosted", "building_id": building})
}

type AppendMessageRequest struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	HeardBy []string `json:"heard_by"`
}

func (s *Server) AppendMessage(c *gin.Context) {
	var req AppendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	buildingID := c.Param("id")
	heardBy := req.HeardBy
	if len(heardBy) == 0 {
		heardBy = s.City.Buildings().Occupants(buildingID)
	}

	role := world.Role(req.Role)
	if role != world.RoleUser && role != world.RoleHost {
		c.JSON(http.StatusBadRequest, gin.H{"error": "role must be user or host"})
		return
	}

	seq, err := s.City.Log().Append(c.Request.Context(), buildingID, world.Message{
		Role:    role,
		Content: req.Content,
		HeardBy: heardBy,
	})
	if err != nil {
		s.Log.Errorw("append failed", "building", buildingID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to append message"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"seq": seq})
}

func (s *Server) ReadMessages(c *gin.Context) {
	messages, err := s.City.Log().Read(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.Log.Errorw("read failed", "building", c.Param("id"), "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// PersonaState is the admin read: emotion, room, watermarks. It never
// mutates a live cycle's state.
func (s *Server) PersonaState(c *gin.Context) {
	p, ok := s.City.Persona(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown persona"})
		return
	}
	snap := p.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"persona_id":  snap.PersonaID,
		"building_id": snap.BuildingID,
		"emotion":     snap.Emotion,
		"cursors":     snap.Cursors,
		"last_prompt": snap.LastPrompt,
	})
}

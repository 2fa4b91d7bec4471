package api

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"

	"github.com/SolarCrown57/antigravity-claude-proxy/internal/gatewayerr"
	"github.com/SolarCrown57/antigravity-claude-proxy/internal/idgen"
	"github.com/SolarCrown57/antigravity-claude-proxy/internal/modelinfo"
	"github.com/SolarCrown57/antigravity-claude-proxy/internal/translator"
)

func (s *Server) handleOpenAIChatCompletions(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		writeGatewayError(c, gatewayerr.New(gatewayerr.KindTranslation, "failed to read request body"))
		return
	}

	sessionID := idgen.DeriveSessionID(firstUserText(raw, "messages"))
	inbound, _ := translator.Default.Inbound(translator.FamilyOpenAI)
	nativeReq, err := inbound(raw, sessionID)
	if err != nil {
		writeGatewayError(c, gatewayerr.Newf(gatewayerr.KindTranslation, "%v", err))
		return
	}

	streaming := gjson.GetBytes(raw, "stream").Bool()
	result, stream, err := s.dispatcher.Dispatch(c.Request.Context(), nativeReq, translator.FamilyOpenAI, streaming, "")
	if err != nil {
		writeGatewayError(c, err)
		return
	}

	if streaming {
		streamSSE(c, stream, "[DONE]")
		return
	}
	c.Data(http.StatusOK, "application/json", result.Body)
}

func (s *Server) handleOpenAIModels(c *gin.Context) {
	c.JSON(http.StatusOK, modelinfo.OpenAIList())
}

package api

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/SolarCrown57/antigravity-claude-proxy/internal/gatewayerr"
	"github.com/SolarCrown57/antigravity-claude-proxy/internal/idgen"
	"github.com/SolarCrown57/antigravity-claude-proxy/internal/modelinfo"
	"github.com/SolarCrown57/antigravity-claude-proxy/internal/translator"
)

// splitModelAction splits gin's single ":model" path segment (which
// includes the Gemini wire protocol's colon-delimited action suffix,
// e.g. "gemini-2.5-pro:streamGenerateContent") into the model name and
// requested action.
func splitModelAction(param string) (model, action string) {
	idx := strings.LastIndex(param, ":")
	if idx < 0 {
		return param, ""
	}
	return param[:idx], param[idx+1:]
}

func (s *Server) handleGeminiGenerateOrStream(c *gin.Context) {
	model, action := splitModelAction(c.Param("model"))
	streaming := action == "streamGenerateContent"
	if !streaming && action != "generateContent" {
		writeGatewayError(c, gatewayerr.Newf(gatewayerr.KindTranslation, "unsupported action %q", action))
		return
	}

	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		writeGatewayError(c, gatewayerr.New(gatewayerr.KindTranslation, "failed to read request body"))
		return
	}

	sessionID := idgen.DeriveSessionID(firstGeminiUserText(raw))
	inbound, _ := translator.Default.Inbound(translator.FamilyGemini)
	nativeReq, err := inbound(raw, sessionID)
	if err != nil {
		writeGatewayError(c, gatewayerr.Newf(gatewayerr.KindTranslation, "%v", err))
		return
	}
	if nativeReq.Model == "" {
		nativeReq.Model = translator.NormalizeModel(model)
		nativeReq.Request.GenerationConfig.MaxOutputTokens = translator.MaxOutputTokensFor(
			nativeReq.Model, nativeReq.Request.GenerationConfig.MaxOutputTokens)
	}

	alt := c.Query("alt")
	result, stream, err := s.dispatcher.Dispatch(c.Request.Context(), nativeReq, translator.FamilyGemini, streaming, alt)
	if err != nil {
		writeGatewayError(c, err)
		return
	}

	if streaming {
		if alt == "sse" {
			streamSSE(c, stream, "")
		} else {
			streamNDJSON(c, stream)
		}
		return
	}
	c.Data(http.StatusOK, "application/json", result.Body)
}

func (s *Server) handleGeminiModelsList(c *gin.Context) {
	c.JSON(http.StatusOK, modelinfo.GeminiList())
}

func (s *Server) handleGeminiModelGet(c *gin.Context) {
	model, _ := splitModelAction(c.Param("model"))
	entry, ok := modelinfo.GeminiGet(model)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "model not found"})
		return
	}
	c.JSON(http.StatusOK, entry)
}

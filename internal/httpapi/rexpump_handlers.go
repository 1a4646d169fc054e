package httpapi

import (
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/rexmedia/mediavault/internal/apperr"
	"github.com/rexmedia/mediavault/internal/models"
	"github.com/rexmedia/mediavault/internal/rexpump"
)

type metadataFieldsJSON struct {
	Description    *string             `json:"description"`
	SocialNetworks []models.SocialLink `json:"social_networks"`
}

func readFormFileBytes(r *http.Request, field string) ([]byte, string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, "", nil // optional field
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", apperr.Wrap(err, apperr.KindIO, "read "+field)
	}
	return data, header.Filename, nil
}

func decodeSignature(raw string) ([]byte, error) {
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	sig, err := hex.DecodeString(raw)
	if err != nil {
		return nil, apperr.New(apperr.KindInvalidSignature, "signature is not valid hex")
	}
	return sig, nil
}

func parseMetadataField(raw string) (*string, []models.SocialLink, error) {
	if raw == "" {
		return nil, nil, nil
	}
	var fields metadataFieldsJSON
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, nil, apperr.New(apperr.KindValidation, "metadata field is not valid JSON")
	}
	return fields.Description, fields.SocialNetworks, nil
}

// handleRexPumpUpdate implements POST /api/rexpump/metadata (§4.8).
func (a *API) handleRexPumpUpdate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(a.Cfg.Upload.MaxSimpleUploadSize * 2); err != nil {
		a.writeError(w, r, apperr.Wrap(err, apperr.KindValidation, "failed to parse multipart form"))
		return
	}

	chainID, err := strconv.ParseInt(r.FormValue("chain_id"), 10, 64)
	if err != nil {
		a.writeError(w, r, apperr.New(apperr.KindValidation, "chain_id must be an integer"))
		return
	}
	timestamp, err := strconv.ParseInt(r.FormValue("timestamp"), 10, 64)
	if err != nil {
		a.writeError(w, r, apperr.New(apperr.KindValidation, "timestamp must be an integer"))
		return
	}
	sig, err := decodeSignature(r.FormValue("signature"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	description, socials, err := parseMetadataField(r.FormValue("metadata"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	imageLight, lightName, err := readFormFileBytes(r, "image_light")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	imageDark, darkName, err := readFormFileBytes(r, "image_dark")
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	req := rexpump.UpdateRequest{
		ChainID:            chainID,
		TokenAddress:       r.FormValue("token_address"),
		TokenOwner:         r.FormValue("token_owner"),
		Timestamp:          timestamp,
		Signature:          sig,
		Description:        description,
		Socials:            socials,
		ImageLight:         imageLight,
		ImageDark:          imageDark,
		ImageLightFilename: lightName,
		ImageDarkFilename:  darkName,
	}

	tm, err := a.RexPump.SignedUpdate(r.Context(), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	resp := tm.ToResponse(a.baseURL())
	a.writeJSON(w, http.StatusOK, resp)
}

// handleRexPumpGet implements GET /api/rexpump/metadata/{chain}/{addr}
// (§4.9 public read).
func (a *API) handleRexPumpGet(w http.ResponseWriter, r *http.Request) {
	chainID, err := strconv.ParseInt(r.PathValue("chain"), 10, 64)
	if err != nil {
		a.writeError(w, r, apperr.New(apperr.KindValidation, "chain must be an integer"))
		return
	}
	resp, err := a.RexPump.PublicGet(chainID, r.PathValue("addr"), a.baseURL())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, resp)
}

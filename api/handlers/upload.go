package handlers

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"

	"github.com/smart-grievance/grievance-api/config"
)

// maxUploadBytes caps photo evidence uploads
const maxUploadBytes = 10 << 20

// Upload handles Cloudinary photo evidence for grievances
type Upload struct{}

// GenerateSignature generates a signature for Cloudinary uploads
func (u Upload) GenerateSignature(w http.ResponseWriter, r *http.Request) {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	uploadPreset := os.Getenv("CLOUDINARY_UPLOAD_PRESET")
	apiSecret := os.Getenv("CLOUDINARY_API_SECRET")

	// Create the signature
	h := hmac.New(sha1.New, []byte(apiSecret))
	h.Write([]byte("timestamp=" + timestamp + "&upload_preset=" + uploadPreset))
	signature := hex.EncodeToString(h.Sum(nil))

	// Respond with the timestamp and signature
	response := map[string]string{
		"timestamp": timestamp,
		"signature": signature,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// UploadPhotoHandler uploads a photo server-side and returns the hosted URL,
// which the citizen passes back as photoRef when submitting a grievance
func (u Upload) UploadPhotoHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		config.ErrorStatus("failed to parse multipart form", http.StatusBadRequest, w, err)
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		config.ErrorStatus("file field is required", http.StatusBadRequest, w, err)
		return
	}
	defer file.Close()

	cld, err := cloudinary.NewFromURL(os.Getenv("CLOUDINARY_URL"))
	if err != nil {
		config.ErrorStatus("cloudinary is not configured", http.StatusInternalServerError, w, err)
		return
	}

	resp, err := cld.Upload.Upload(r.Context(), file, uploader.UploadParams{
		Folder:   "grievances",
		PublicID: uuid.New().String(),
	})
	if err != nil {
		config.ErrorStatus("failed to upload photo", http.StatusServiceUnavailable, w, err)
		return
	}

	respond(w, http.StatusCreated, map[string]string{"photoRef": resp.SecureURL})
}

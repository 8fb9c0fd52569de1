package image

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// The service has been seen answering with both spellings of the inline
// payload and its mime type. Keys are tried in order.
var (
	inlineDataKeys = []string{"inlineData", "inline_data"}
	mimeTypeKeys   = []string{"mimeType", "mime_type"}
)

type Image struct {
	Data     []byte
	MIMEType string
}

type responseBody struct {
	Candidates []candidate `json:"candidates"`
	Error      *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

type candidate struct {
	Content *struct {
		Parts []map[string]json.RawMessage `json:"parts"`
	} `json:"content"`
	FinishReason string `json:"finishReason"`
}

// Decode extracts the first inline image from a generateContent response.
func Decode(body []byte) (Image, error) {
	raw := rawJSON(body)

	var resp responseBody
	if err := json.Unmarshal(body, &resp); err != nil {
		return Image{}, &Error{Reason: ReasonMalformedResponse, Detail: "response is not a JSON object", Raw: raw, Err: err}
	}
	if resp.Error != nil {
		return Image{}, &Error{
			Reason:     ReasonProviderError,
			StatusCode: resp.Error.Code,
			Detail:     strings.TrimSpace(fmt.Sprintf("%s %s", resp.Error.Status, resp.Error.Message)),
			Raw:        raw,
		}
	}
	if len(resp.Candidates) == 0 {
		return Image{}, &Error{Reason: ReasonMalformedResponse, Detail: "response has no candidates", Raw: raw}
	}
	first := resp.Candidates[0]
	if first.Content == nil || first.Content.Parts == nil {
		return Image{}, &Error{Reason: ReasonMalformedResponse, Detail: "first candidate has no content parts", Raw: raw}
	}

	for _, part := range first.Content.Parts {
		payload, ok := lookup(part, inlineDataKeys)
		if !ok {
			continue
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(payload, &fields); err != nil {
			continue
		}
		var data string
		if v, ok := fields["data"]; !ok || json.Unmarshal(v, &data) != nil || data == "" {
			continue
		}

		decoded, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return Image{}, &Error{Reason: ReasonDecode, Detail: "inline image is not valid base64", Err: err}
		}
		img := Image{Data: decoded}
		if v, ok := lookup(fields, mimeTypeKeys); ok {
			var mimeType string
			if err := json.Unmarshal(v, &mimeType); err == nil {
				img.MIMEType = mimeType
			}
		}
		return img, nil
	}

	detail := "no image data in response"
	if first.FinishReason != "" {
		detail += " (finishReason " + first.FinishReason + ")"
	}
	return Image{}, &Error{Reason: ReasonNoImageData, Detail: detail, Raw: raw}
}

func lookup(m map[string]json.RawMessage, keys []string) (json.RawMessage, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v, true
		}
	}
	return nil, false
}

func rawJSON(data []byte) json.RawMessage {
	if json.Valid(data) {
		return json.RawMessage(data)
	}
	quoted, _ := json.Marshal(string(data))
	return quoted
}

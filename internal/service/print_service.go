package service

import (
	"bytes"
	"context"
	"html/template"

	"bazap-service/internal/models"
	"bazap-service/internal/util"

	"go.uber.org/zap"
)

// LabelProvider resolves printable data for one event line
type LabelProvider interface {
	GetLabelData(ctx context.Context, eventItemID int64) (*LabelData, error)
}

// PrintService renders printable labels from inspection results
type PrintService struct {
	labels LabelProvider
	tmpl   *template.Template
	logger *zap.Logger
}

const labelTemplate = `<!DOCTYPE html>
<html lang="he" dir="rtl">
<head>
<meta charset="UTF-8">
<style>
body { font-family: Arial; direction: rtl; margin: 0; padding: 10px; }
.label { border: 2px solid black; width: 10cm; height: 7cm; padding: 10px; text-align: right; box-sizing: border-box; }
.status { font-size: 24px; font-weight: bold; color: red; margin: 5px 0; }
.makat { font-size: 14px; margin: 5px 0; }
.name { font-size: 12px; margin: 5px 0; }
.reason { font-size: 12px; margin: 5px 0; }
.notes { font-size: 10px; margin: 5px 0; }
.date { font-size: 10px; margin: 5px 0; }
.inspector { font-size: 10px; margin: 5px 0; }
.event { font-size: 10px; margin: 5px 0; }
</style>
</head>
<body>
{{- range .}}
<div class="label">
<div class="status">{{.Status}}</div>
<div class="makat">מקט: {{.Makat}}</div>
<div class="name">פריט: {{.ItemName}}</div>
<div class="reason">סיבה: {{.Reason}}</div>
{{- if .Notes}}
<div class="notes">הערות: {{.Notes}}</div>
{{- end}}
<div class="date">תאריך: {{.Date}}</div>
<div class="inspector">בוחן: {{.Inspector}}</div>
<div class="event">אירוע: {{.EventNumber}}</div>
</div>
<br style="page-break-after: always;"/>
{{- end}}
</body>
</html>
`

type labelView struct {
	Status      string
	Makat       string
	ItemName    string
	Reason      string
	Notes       string
	Date        string
	Inspector   string
	EventNumber string
}

// NewPrintService creates a new print service
func NewPrintService(labels LabelProvider) *PrintService {
	return &PrintService{
		labels: labels,
		tmpl:   template.Must(template.New("label").Parse(labelTemplate)),
		logger: util.GetLogger(),
	}
}

// RenderLabel renders the label for one event line, repeated per copy
func (s *PrintService) RenderLabel(ctx context.Context, eventItemID int64, copies int) ([]byte, error) {
	ctx, span := util.StartSpan(ctx, "PrintService.RenderLabel")
	defer span.End()

	data, err := s.labels.GetLabelData(ctx, eventItemID)
	if err != nil {
		return nil, err
	}

	if copies < 1 {
		copies = 1
	}
	views := make([]labelView, 0, copies)
	for i := 0; i < copies; i++ {
		views = append(views, buildLabelView(data))
	}

	out, err := s.render(views)
	if err != nil {
		return nil, err
	}
	util.LabelsRenderedTotal.WithLabelValues("single").Inc()
	return out, nil
}

// RenderBatch concatenates labels for many lines with page breaks.
// Lines with no recorded decision are skipped and logged, never failing
// the whole batch.
func (s *PrintService) RenderBatch(ctx context.Context, eventItemIDs []int64) ([]byte, error) {
	ctx, span := util.StartSpan(ctx, "PrintService.RenderBatch")
	defer span.End()

	views := make([]labelView, 0, len(eventItemIDs))
	for _, id := range eventItemIDs {
		data, err := s.labels.GetLabelData(ctx, id)
		if err != nil {
			util.LabelsSkippedTotal.Inc()
			s.logger.Warn("Skipping label in batch",
				zap.Int64("event_item_id", id),
				zap.Error(err))
			continue
		}
		views = append(views, buildLabelView(data))
	}

	out, err := s.render(views)
	if err != nil {
		return nil, err
	}
	util.LabelsRenderedTotal.WithLabelValues("batch").Inc()
	return out, nil
}

func (s *PrintService) render(views []labelView) ([]byte, error) {
	var buf bytes.Buffer
	if err := s.tmpl.Execute(&buf, views); err != nil {
		return nil, Internalf(err, "failed to render label")
	}
	return buf.Bytes(), nil
}

func buildLabelView(data *LabelData) labelView {
	status := "תקין"
	if data.Decision == models.DecisionDisabled {
		status = "מושבת"
	}
	return labelView{
		Status:      status,
		Makat:       data.Makat,
		ItemName:    data.ItemName,
		Reason:      DisableReasonText(data.DisableReason),
		Notes:       data.Notes,
		Date:        data.ActionDate.Format("2006-01-02 15:04"),
		Inspector:   data.InspectorName,
		EventNumber: data.EventNumber,
	}
}

// DisableReasonText maps a disable reason to its display text
func DisableReasonText(reason string) string {
	switch reason {
	case models.DisableReasonVisualDamage:
		return "נזק ויזואלי"
	case models.DisableReasonScrap:
		return "גרוטאות"
	case models.DisableReasonMalfunction:
		return "תקלה/לא תקין"
	case models.DisableReasonMissingParts:
		return "חלקים חסרים"
	case models.DisableReasonExpired:
		return "פג תוקף"
	case models.DisableReasonCalibration:
		return "טעון כיול"
	default:
		return "אחר"
	}
}

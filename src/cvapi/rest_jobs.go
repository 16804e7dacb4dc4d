package cvapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

type restJobController struct{ c *restClient }

type jobSummaryWire struct {
	JobID           flexID  `json:"jobId"`
	Status          string  `json:"status"`
	JobType         string  `json:"jobType"`
	LocalizedStatus string  `json:"localizedStatus"`
	CurrentPhase    string  `json:"currentPhaseName"`
	BackupLevelName string  `json:"backupLevelName"`
	PercentComplete flexInt `json:"percentComplete"`
	PendingReason   string  `json:"pendingReason"`
	DelayReason     string  `json:"delayReason"`
	JobStartTime    flexInt `json:"jobStartTime"`
	JobEndTime      flexInt `json:"jobEndTime"`
	Subclient       struct {
		ClientName    string `json:"clientName"`
		SubclientName string `json:"subclientName"`
	} `json:"subclient"`
}

func (w jobSummaryWire) summary() JobSummary {
	s := JobSummary{
		JobID:           string(w.JobID),
		JobType:         w.JobType,
		Status:          firstNonEmpty(w.Status, w.LocalizedStatus),
		Phase:           w.CurrentPhase,
		BackupLevel:     w.BackupLevelName,
		PercentComplete: int(w.PercentComplete),
		PendingReason:   w.PendingReason,
		DelayReason:     w.DelayReason,
		ClientName:      w.Subclient.ClientName,
		SubclientName:   w.Subclient.SubclientName,
	}
	if w.JobStartTime > 0 {
		s.StartTime = time.Unix(int64(w.JobStartTime), 0).UTC()
	}
	if w.JobEndTime > 0 {
		s.EndTime = time.Unix(int64(w.JobEndTime), 0).UTC()
	}
	return s
}

type jobListWire struct {
	TotalRecords flexInt `json:"totalRecordsWithoutPaging"`
	Jobs         []struct {
		JobSummary jobSummaryWire `json:"jobSummary"`
	} `json:"jobs"`
}

func (jc *restJobController) Get(ctx context.Context, jobID string) (Job, error) {
	if _, err := strconv.ParseUint(jobID, 10, 64); err != nil {
		return nil, &NotFoundError{Resource: "job", Name: jobID}
	}
	j := &restJob{c: jc.c, id: jobID}
	if _, err := j.Summary(ctx); err != nil {
		return nil, err
	}
	return j, nil
}

func (jc *restJobController) List(ctx context.Context, filter JobFilter) ([]JobSummary, error) {
	category := filter.Category
	if category == "" {
		category = JobsActive
	}
	q := url.Values{"jobCategory": {string(category)}}
	if filter.ClientName != "" {
		q.Set("clientName", filter.ClientName)
	}
	if filter.JobTypes != "" {
		q.Set("jobFilter", filter.JobTypes)
	}
	if filter.LookupTime > 0 && category != JobsActive {
		hours := int(filter.LookupTime / time.Hour)
		if hours < 1 {
			hours = 1
		}
		q.Set("completedJobLookupTime", strconv.Itoa(hours*3600))
	}
	var resp jobListWire
	if err := jc.c.do(ctx, http.MethodGet, "Job", q, nil, &resp); err != nil {
		return nil, err
	}
	out := make([]JobSummary, 0, len(resp.Jobs))
	for _, j := range resp.Jobs {
		out = append(out, j.JobSummary.summary())
	}
	return out, nil
}

type restJob struct {
	c  *restClient
	id string
}

var _ Job = (*restJob)(nil)

func (j *restJob) JobID() string  { return j.id }
func (j *restJob) String() string { return fmt.Sprintf("Job class instance for job id: %q", j.id) }

func (j *restJob) Summary(ctx context.Context) (JobSummary, error) {
	var resp jobListWire
	if err := j.c.do(ctx, http.MethodGet, "Job/"+j.id, nil, nil, &resp); err != nil {
		return JobSummary{}, err
	}
	if len(resp.Jobs) == 0 {
		return JobSummary{}, &NotFoundError{Resource: "job", Name: j.id}
	}
	return resp.Jobs[0].JobSummary.summary(), nil
}

func (j *restJob) WaitForCompletion(ctx context.Context, timeout time.Duration, onUpdate func(JobSummary)) (bool, error) {
	return waitForCompletion(ctx, j.c.clock, j.c.pollInterval, timeout, j.Summary, onUpdate)
}

func (j *restJob) Kill(ctx context.Context, wait bool) error {
	return j.action(ctx, "kill", wait, "killed")
}

func (j *restJob) Pause(ctx context.Context, wait bool) error {
	return j.action(ctx, "pause", wait, "suspended")
}

func (j *restJob) Resume(ctx context.Context, wait bool) error {
	return j.action(ctx, "resume", wait, "running", "waiting", "pending", "queued")
}

func (j *restJob) action(ctx context.Context, verb string, wait bool, statuses ...string) error {
	if err := j.c.do(ctx, http.MethodPost, "Job/"+j.id+"/action/"+verb, nil, nil, nil); err != nil {
		return err
	}
	j.c.logger.Debug("job action sent", "job_id", j.id, "action", verb)
	if !wait {
		return nil
	}
	return waitForStatus(ctx, j.c.clock, j.c.pollInterval, DefaultActionTimeout, j.Summary, verb, statuses...)
}

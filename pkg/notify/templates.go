package notify

import "html/template"

const approvedHTML = `<div style="font-family:Inter,Arial,sans-serif;max-width:680px;margin:auto;padding:18px;background:#f7f8fb;border-radius:10px;">
  <div style="background:linear-gradient(90deg,#4caf50,#2ecc71);padding:18px;border-radius:8px;color:white;text-align:center;">
    <h1 style="margin:0;font-size:22px;">Congratulations!</h1>
    <p style="margin:6px 0 0;">Your {{.LoanType}} has been <strong>APPROVED</strong></p>
  </div>
  <div style="padding:18px;background:white;border-radius:8px;margin-top:12px;">
    <p>Hi <strong>{{.ApplicantName}}</strong>,</p>
    <p>We're happy to let you know your <strong>{{.LoanType}}</strong> has been approved.</p>
    <ul>
      <li><strong>Loan ID:</strong> {{.LoanID}}</li>
      <li><strong>Loan Type:</strong> {{.LoanType}}</li>
      <li><strong>Amount:</strong> ₹{{.Amount}}</li>
      <li><strong>Tenure:</strong> {{.TenureYears}} year(s) ({{.RepaymentMonths}} months)</li>
      <li><strong>Monthly Installment:</strong> ₹{{.MonthlyInstallment}}</li>
    </ul>
    <p style="margin-top:14px;">Thank you for choosing us. If you have any questions, reply to this mail.</p>
    <p style="color:#666;font-size:13px;margin-top:14px;">Regards,<br/>Loan Team</p>
  </div>
</div>`

const rejectedHTML = `<div style="font-family:Inter,Arial,sans-serif;max-width:680px;margin:auto;padding:18px;background:#fff6f6;border-radius:10px;">
  <div style="background:linear-gradient(90deg,#ff6b6b,#ff4d4f);padding:18px;border-radius:8px;color:white;text-align:center;">
    <h1 style="margin:0;font-size:22px;">Loan Application Update</h1>
  </div>
  <div style="padding:18px;background:white;border-radius:8px;margin-top:12px;">
    <p>Hi <strong>{{.ApplicantName}}</strong>,</p>
    <p>We regret to inform you that your <strong>{{.LoanType}}</strong> request (Loan ID: {{.LoanID}}) has been <strong style="color:#c0392b;">rejected</strong>.</p>
    <p>This could be due to eligibility or documentation. You may reapply after reviewing the eligibility requirements.</p>
    <p style="color:#666;font-size:13px;margin-top:14px;">Regards,<br/>Loan Team</p>
  </div>
</div>`

const withdrawnHTML = `<div style="font-family:Inter,Arial,sans-serif;max-width:680px;margin:auto;padding:18px;background:#eef7ff;border-radius:10px;">
  <div style="background:linear-gradient(90deg,#2196f3,#00a1ff);padding:18px;border-radius:8px;color:white;text-align:center;">
    <h1 style="margin:0;font-size:22px;">Loan Withdrawn</h1>
  </div>
  <div style="padding:18px;background:white;border-radius:8px;margin-top:12px;">
    <p>Hi <strong>{{.ApplicantName}}</strong>,</p>
    <p>Your {{.LoanType}} request (Loan ID: {{.LoanID}}) has been marked as <strong>withdrawn</strong>. If you change your mind you can submit a new application anytime.</p>
    <p style="color:#666;font-size:13px;margin-top:14px;">Regards,<br/>Loan Team</p>
  </div>
</div>`

const receiptHTML = `<div style="font-family:Inter,Arial,sans-serif;max-width:680px;margin:auto;padding:18px;background:#f4fff6;border-radius:10px;">
  <div style="padding:14px;border-radius:8px;background:white;">
    <p>Hi <strong>{{.ApplicantName}}</strong>,</p>
    <p>We received a payment of <strong>₹{{.Paid}}</strong> for your <strong>{{.LoanType}}</strong> (Loan ID: {{.LoanID}}).</p>
    <p><strong>Total Paid:</strong> ₹{{.TotalPaid}} / ₹{{.Principal}}</p>
    <p>Status: <strong>{{.Status}}</strong></p>
    <p style="color:#666;font-size:13px;margin-top:14px;">Regards,<br/>Loan Team</p>
  </div>
</div>`

var templates = map[Kind]*template.Template{
	KindApproved:       template.Must(template.New("approved").Parse(approvedHTML)),
	KindRejected:       template.Must(template.New("rejected").Parse(rejectedHTML)),
	KindWithdrawn:      template.Must(template.New("withdrawn").Parse(withdrawnHTML)),
	KindPaymentReceipt: template.Must(template.New("receipt").Parse(receiptHTML)),
}

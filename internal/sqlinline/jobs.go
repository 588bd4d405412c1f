package sqlinline

const jobColumns = `id::text, user_id, kind, request_id, status, result_url, error_message, progress, prompt, source_image_url, settings, created_at, updated_at`

const QInsertJob = `--sql af21e886-e886-4cd3-aac1-3ead0b95646c
insert into generation_jobs (id, user_id, kind, status, progress, prompt, source_image_url, settings, created_at, updated_at)
values ($1::uuid, $2::text, $3::text, $4::text, $5::int, $6::text, $7::text, $8::jsonb, now(), now())
returning created_at, updated_at;
`

const QSelectJobByID = `--sql d63ed2fa-6c34-490b-8a06-c88f6e18b7fa
select ` + jobColumns + `
from generation_jobs
where id = $1::uuid;
`

const QListJobsByUser = `--sql 6e41a6fc-8107-4ff1-92a3-e2ab9b51dc4e
select ` + jobColumns + `
from generation_jobs
where user_id = $1::text
  and ($2::text = '' or kind = $2::text)
order by created_at desc, id
limit $3::int;
`

// QSetJobRequestID only writes while no request id is stored.
const QSetJobRequestID = `--sql f02f05f5-eeb2-49a3-8260-2248dc67c292
update generation_jobs
set request_id = $2::text,
    updated_at = now()
where id = $1::uuid
  and request_id is null;
`

// QUpdateJobProgress records a non-terminal observation. It never moves a job
// backwards and never lowers progress.
const QUpdateJobProgress = `--sql d69cd3e3-40d7-4f6d-a308-a1b91e06730c
update generation_jobs
set status = $2::text,
    progress = greatest(progress, least($3::int, 99)),
    updated_at = now()
where id = $1::uuid
  and status not in ('completed', 'failed')
  and not (status = 'processing' and $2::text = 'in_queue');
`

const QMarkJobCompleted = `--sql ba5fa3ce-f07c-4f35-b995-d339499183ae
update generation_jobs
set status = 'completed',
    result_url = $2::text,
    error_message = null,
    progress = 100,
    updated_at = now()
where id = $1::uuid
  and status not in ('completed', 'failed');
`

const QMarkJobFailed = `--sql 848a754e-fe49-4860-9577-069aa6d36195
update generation_jobs
set status = 'failed',
    error_message = $2::text,
    result_url = null,
    updated_at = now()
where id = $1::uuid
  and status not in ('completed', 'failed');
`

// QClaimJobForRetry requeues a failed row before the provider is called, so
// only one retry resubmits. The new request id is stored by QSetJobRequestID.
const QClaimJobForRetry = `--sql 5d164cb2-2f4b-41f4-949d-2eac77740de5
update generation_jobs
set status = 'in_queue',
    request_id = null,
    result_url = null,
    error_message = null,
    progress = 0,
    updated_at = now()
where id = $1::uuid
  and status = 'failed';
`

// Schema creates the tables used by the service. Statements are idempotent.
const Schema = `
create table if not exists generation_jobs (
    id               uuid primary key,
    user_id          text not null,
    kind             text not null check (kind in ('image', 'video', 'product_shot')),
    request_id       text,
    status           text not null check (status in ('in_queue', 'processing', 'completed', 'failed')),
    result_url       text,
    error_message    text,
    progress         int not null default 0 check (progress between 0 and 100),
    prompt           text not null,
    source_image_url text not null default '',
    settings         jsonb not null default '{}'::jsonb,
    created_at       timestamptz not null default now(),
    updated_at       timestamptz not null default now(),
    constraint generation_jobs_outcome check (
        (status in ('in_queue', 'processing') and result_url is null and error_message is null)
        or (status = 'completed' and result_url is not null and error_message is null)
        or (status = 'failed' and error_message is not null and result_url is null)
    )
);

create index if not exists generation_jobs_user_created_idx
    on generation_jobs (user_id, created_at desc);

create table if not exists integration_tokens (
    id          uuid primary key,
    provider    text not null unique,
    token       text not null,
    properties  jsonb not null default '{}'::jsonb,
    created_at  timestamptz not null default now(),
    updated_at  timestamptz not null default now()
);
`
